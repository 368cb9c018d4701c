// Package tracking records parameters, metrics, inputs and artifacts of
// pipeline runs in an experiment tracking service.
package tracking

import "context"

const (
	RunFinished = "FINISHED"
	RunFailed   = "FAILED"
	RunKilled   = "KILLED"
)

const (
	TagUser    = "mlflow.user"
	TagRunName = "mlflow.runName"
	TagSource  = "mlflow.source.name"

	// DatasetContextTag marks a logged input as train or test data.
	DatasetContextTag = "mlflow.data.context"
)

// Dataset describes a data file used by a run.
type Dataset struct {
	Name       string `json:"name"`
	Digest     string `json:"digest"`
	SourceType string `json:"source_type"`
	Source     string `json:"source"`
	Schema     string `json:"schema,omitempty"`
	Profile    string `json:"profile,omitempty"`
}

type Tracker interface {
	// StartRun starts a run in experiment, creating the experiment when it does not exist.
	StartRun(ctx context.Context, experiment string, runName string, tags map[string]string) (Run, error)
}

type Run interface {
	ID() string
	LogParams(ctx context.Context, params map[string]string) error
	LogMetric(ctx context.Context, key string, value float64) error
	LogMetrics(ctx context.Context, metrics map[string]float64) error
	SetTag(ctx context.Context, key, value string) error
	LogInput(ctx context.Context, dataset Dataset, context string) error
	// LogArtifact uploads localPath into the artifactPath directory of the run.
	LogArtifact(ctx context.Context, localPath string, artifactPath string) error
	// LogDict uploads v serialized as JSON to the file artifactFile of the run.
	LogDict(ctx context.Context, v any, artifactFile string) error
	End(ctx context.Context, status string) error
}
