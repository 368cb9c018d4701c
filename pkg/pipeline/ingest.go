package pipeline

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/config"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/dataset"
)

// Ingest writes the bundled reference dataset to the raw data path.
func Ingest(ctx context.Context, settings *config.Settings) error {
	log := logr.FromContextOrDiscard(ctx)
	frame := dataset.Iris()
	out := settings.Resolve(settings.Paths.RawData)
	if err := dataset.WriteCSV(out, frame); err != nil {
		return err
	}
	log.Info("saved raw data", "path", out, "rows", frame.Len(), "columns", len(frame.Columns))
	return nil
}

// Preprocess splits the raw data into the train and test partitions. The
// cleaned frame the split was taken from is written to the processed data path.
func Preprocess(ctx context.Context, settings *config.Settings) error {
	log := logr.FromContextOrDiscard(ctx)
	in := settings.Resolve(settings.Paths.RawData)
	log.Info("loading raw data", "path", in)
	frame, err := dataset.ReadCSV(in)
	if err != nil {
		return err
	}

	log.Info("splitting data", "test_size", settings.Training.TestSize, "random_state", settings.Training.RandomState)
	train, test, err := dataset.Split(frame, settings.Training.TestSize, settings.Training.RandomState)
	if err != nil {
		return err
	}

	outputs := []struct {
		path  string
		frame dataset.Frame
	}{
		{settings.Paths.ProcessedData, frame},
		{settings.Paths.TrainData, train},
		{settings.Paths.TestData, test},
	}
	for _, o := range outputs {
		path := settings.Resolve(o.path)
		if err := dataset.WriteCSV(path, o.frame); err != nil {
			return err
		}
		log.Info("saved data", "path", path, "rows", o.frame.Len())
	}
	return nil
}
