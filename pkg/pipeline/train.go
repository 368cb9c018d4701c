package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/config"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/dataset"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/fileio"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/ml"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/registry"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/tracking"
)

const (
	TrainingRunName = "training"
	// ModelArtifactPath is the run artifact directory the fitted model is uploaded to.
	ModelArtifactPath        = "classifier"
	ClassificationReportFile = "classification_report.json"
	TagRegisteredVersion     = "registered_model_version"
)

type TrainResult struct {
	RunID   string
	Version int
	Metrics map[string]float64
}

// Train fits the configured classifier, evaluates it on the test partition and
// registers it. Every tracking call happens inside one run; the first failure
// ends the run as FAILED and aborts the stage. Files already written are kept.
func Train(ctx context.Context, settings *config.Settings, tracker tracking.Tracker, models ModelRegistry) (*TrainResult, error) {
	log := logr.FromContextOrDiscard(ctx)
	params := settings.Training

	clf, err := ml.New(params.ModelName, ml.Params{MaxIter: params.MaxIter, C: *params.C})
	if err != nil {
		return nil, err
	}

	trainPath, testPath := settings.Resolve(settings.Paths.TrainData), settings.Resolve(settings.Paths.TestData)
	log.Info("loading data", "train", trainPath, "test", testPath)
	train, err := dataset.ReadCSV(trainPath)
	if err != nil {
		return nil, err
	}
	test, err := dataset.ReadCSV(testPath)
	if err != nil {
		return nil, err
	}
	Xtrain, ytrain, err := train.Features(dataset.LabelColumn)
	if err != nil {
		return nil, err
	}
	Xtest, ytest, err := test.Features(dataset.LabelColumn)
	if err != nil {
		return nil, err
	}

	run, err := tracker.StartRun(ctx, settings.MLflow.ExperimentName, TrainingRunName, map[string]string{
		tracking.TagUser:   currentUser(),
		tracking.TagSource: "mlops train",
	})
	if err != nil {
		return nil, err
	}
	log = log.WithValues("run", run.ID())
	log.Info("started training run", "experiment", settings.MLflow.ExperimentName)

	result, err := trainInRun(logr.NewContext(ctx, log), settings, run, models, clf, trainData{
		train: train, test: test, trainPath: trainPath, testPath: testPath,
		Xtrain: Xtrain, ytrain: ytrain, Xtest: Xtest, ytest: ytest,
	})
	if err != nil {
		endFailedRun(ctx, log, run)
		return nil, err
	}
	if err := run.End(ctx, tracking.RunFinished); err != nil {
		return nil, err
	}
	log.Info("finished training", "version", result.Version, "test_accuracy", result.Metrics["test_accuracy"])
	return result, nil
}

type trainData struct {
	train, test         dataset.Frame
	trainPath, testPath string
	Xtrain, Xtest       [][]float64
	ytrain, ytest       []int
}

func trainInRun(ctx context.Context, settings *config.Settings, run tracking.Run, models ModelRegistry, clf ml.Classifier, data trainData) (*TrainResult, error) {
	log := logr.FromContextOrDiscard(ctx)

	params := settings.Training.Params()
	if err := run.LogParams(ctx, params); err != nil {
		return nil, err
	}
	log.V(1).Info("logged parameters", "params", params)

	for _, input := range []struct {
		name, path, context string
		frame               dataset.Frame
	}{
		{"train", data.trainPath, "training_data", data.train},
		{"test", data.testPath, "testing_data", data.test},
	} {
		ds, err := describeDataset(input.name, input.path, input.frame)
		if err != nil {
			return nil, err
		}
		if err := run.LogInput(ctx, ds, input.context); err != nil {
			return nil, err
		}
	}

	log.Info("fitting model", "type", clf.Type(), "samples", len(data.Xtrain))
	if err := clf.Fit(data.Xtrain, data.ytrain); err != nil {
		return nil, err
	}

	log.Info("evaluating model on test set", "samples", len(data.Xtest))
	metrics, report, err := evaluate(clf, data.Xtest, data.ytest)
	if err != nil {
		return nil, err
	}
	log.Info("evaluated model", "test_accuracy", fmt.Sprintf("%.4f", metrics["test_accuracy"]))
	if err := run.LogMetrics(ctx, metrics); err != nil {
		return nil, err
	}

	final := map[string]any{
		"test_accuracy":         metrics["test_accuracy"],
		"test_f1_score":         metrics["test_f1_score"],
		"test_roc_auc":          metrics["test_roc_auc"],
		"classification_report": report,
	}
	reportPath := settings.Resolve(settings.Paths.Reports)
	if err := fileio.SaveJSON(final, reportPath); err != nil {
		return nil, err
	}
	log.Info("saved metrics report", "path", reportPath)
	if err := run.LogDict(ctx, report, ClassificationReportFile); err != nil {
		return nil, err
	}

	modelPath := settings.Resolve(settings.Paths.Model)
	if err := ml.Save(clf, modelPath); err != nil {
		return nil, err
	}
	log.Info("saved model", "path", modelPath)
	if err := run.LogArtifact(ctx, modelPath, ModelArtifactPath); err != nil {
		return nil, err
	}

	version, err := models.Register(ctx, settings.Training.RegisteredModelName, modelPath, registry.RegisterOptions{
		Description: settings.MLflow.RegisteredModelDescription,
		Tags:        settings.MLflow.ModelVersionTags,
		Stage:       settings.Training.ModelStage,
		RunID:       run.ID(),
		Metrics:     metrics,
	})
	if err != nil {
		return nil, err
	}
	if err := run.SetTag(ctx, TagRegisteredVersion, strconv.Itoa(version.Version)); err != nil {
		return nil, err
	}
	log.Info("registered model", "name", version.Name, "version", version.Version, "stage", version.Stage)
	return &TrainResult{RunID: run.ID(), Version: version.Version, Metrics: metrics}, nil
}

func evaluate(clf ml.Classifier, X [][]float64, y []int) (map[string]float64, ml.Report, error) {
	pred, err := clf.Predict(X)
	if err != nil {
		return nil, ml.Report{}, err
	}
	proba, err := clf.PredictProba(X)
	if err != nil {
		return nil, ml.Report{}, err
	}
	precision, recall, f1 := ml.PrecisionRecallF1(y, pred)
	logloss, err := ml.LogLoss(y, proba, clf.Classes())
	if err != nil {
		return nil, ml.Report{}, err
	}
	auc, err := ml.ROCAUCOvR(y, proba, clf.Classes())
	if err != nil {
		return nil, ml.Report{}, err
	}
	metrics := map[string]float64{
		"test_accuracy":  ml.Accuracy(y, pred),
		"test_precision": precision,
		"test_recall":    recall,
		"test_f1_score":  f1,
		"test_log_loss":  logloss,
		"test_roc_auc":   auc,
	}
	return metrics, ml.ClassificationReport(y, pred), nil
}

// describeDataset fingerprints a data file the way tracking inputs are recorded.
func describeDataset(name, path string, frame dataset.Frame) (tracking.Dataset, error) {
	dgst, err := fileio.FileDigest(path)
	if err != nil {
		return tracking.Dataset{}, errors.NewInternalError(err)
	}
	type colspec struct {
		Type     string `json:"type"`
		Name     string `json:"name"`
		Required bool   `json:"required"`
	}
	cols := make([]colspec, 0, len(frame.Columns))
	for _, col := range frame.Columns {
		typ := "double"
		if col == dataset.LabelColumn {
			typ = "long"
		}
		cols = append(cols, colspec{Type: typ, Name: col, Required: true})
	}
	schema, _ := json.Marshal(map[string]any{"mlflow_colspec": cols})
	source, _ := json.Marshal(map[string]string{"uri": path})
	profile, _ := json.Marshal(map[string]int{
		"num_rows":     frame.Len(),
		"num_elements": frame.Len() * len(frame.Columns),
	})
	return tracking.Dataset{
		Name:       name,
		Digest:     dgst.Encoded()[:8],
		SourceType: "local",
		Source:     string(source),
		Schema:     string(schema),
		Profile:    string(profile),
	}, nil
}
