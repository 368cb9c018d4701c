package pipeline

import (
	"context"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/config"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/dataset"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/tracking"
)

const (
	PredictionRunName = "prediction"
	PredictionColumn  = "prediction"
)

type PredictResult struct {
	RunID       string
	OutputPath  string
	Predictions int
}

// Predict scores the test partition with the registered model named in the
// prediction settings. The model is resolved before anything is read, written
// or tracked.
func Predict(ctx context.Context, settings *config.Settings, tracker tracking.Tracker, models ModelRegistry) (*PredictResult, error) {
	log := logr.FromContextOrDiscard(ctx)
	pred := settings.Prediction
	if pred == nil {
		return nil, errors.NewConfigInvalidError("prediction settings are required to run predictions")
	}

	modelURI := "models:/" + pred.ModelName + "/" + pred.ModelStage
	log.Info("loading model from registry", "uri", modelURI)
	clf, version, err := models.LoadModel(ctx, pred.ModelName, pred.ModelStage)
	if err != nil {
		return nil, err
	}
	log.Info("loaded model", "version", version.Version, "type", clf.Type())

	in := settings.Resolve(settings.Paths.TestData)
	log.Info("loading data for prediction", "path", in)
	frame, err := dataset.ReadCSV(in)
	if err != nil {
		return nil, err
	}
	frame = frame.Drop(dataset.LabelColumn)
	X, err := frame.Matrix()
	if err != nil {
		return nil, err
	}

	run, err := tracker.StartRun(ctx, settings.MLflow.PredictionExperimentName, PredictionRunName, map[string]string{
		tracking.TagUser:   currentUser(),
		tracking.TagSource: "mlops predict",
	})
	if err != nil {
		return nil, err
	}
	log = log.WithValues("run", run.ID())
	result, err := predictInRun(logr.NewContext(ctx, log), settings, run, modelURI, frame, X, clf.Predict)
	if err != nil {
		endFailedRun(ctx, log, run)
		return nil, err
	}
	if err := run.End(ctx, tracking.RunFinished); err != nil {
		return nil, err
	}
	log.Info("finished prediction run", "output", result.OutputPath, "predictions", result.Predictions)
	return result, nil
}

func predictInRun(ctx context.Context, settings *config.Settings, run tracking.Run, modelURI string,
	frame dataset.Frame, X [][]float64, predict func([][]float64) ([]int, error),
) (*PredictResult, error) {
	log := logr.FromContextOrDiscard(ctx)
	if err := run.LogParams(ctx, map[string]string{"source_model_uri": modelURI}); err != nil {
		return nil, err
	}

	log.Info("running predictions", "rows", len(X))
	labels, err := predict(X)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(labels))
	for i, label := range labels {
		values[i] = strconv.Itoa(label)
	}
	out, err := frame.WithColumn(PredictionColumn, values)
	if err != nil {
		return nil, err
	}
	outputPath := settings.Resolve(settings.Prediction.OutputPath)
	if err := dataset.WriteCSV(outputPath, out); err != nil {
		return nil, err
	}
	log.Info("saved predictions", "path", outputPath)

	if err := run.SetTag(ctx, "user", currentUser()); err != nil {
		return nil, err
	}
	if err := run.LogArtifact(ctx, outputPath, ""); err != nil {
		return nil, err
	}
	if err := run.LogMetric(ctx, "num_predictions", float64(len(labels))); err != nil {
		return nil, err
	}
	return &PredictResult{RunID: run.ID(), OutputPath: outputPath, Predictions: len(labels)}, nil
}
