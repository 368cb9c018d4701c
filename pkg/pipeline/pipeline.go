// Package pipeline implements the stages of the ml workflow. Each stage reads
// and writes only the paths declared in the settings it is given.
package pipeline

import (
	"context"
	"os"
	"os/user"
	"time"

	"github.com/go-logr/logr"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/ml"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/registry"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/tracking"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/types"
)

// ModelRegistry is the part of the registry the training and prediction stages use.
type ModelRegistry interface {
	Register(ctx context.Context, name string, modelFile string, options registry.RegisterOptions) (types.ModelVersion, error)
	LoadModel(ctx context.Context, name string, stage string) (ml.Classifier, types.ModelVersion, error)
}

var _ ModelRegistry = &registry.RegistryStore{}

// Clock returns the current time.
type Clock func() time.Time

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}

// endFailedRun closes a run whose stage failed. Runs cut short by an
// interrupt are KILLED; the final update is sent even though ctx is done.
func endFailedRun(ctx context.Context, log logr.Logger, run tracking.Run) {
	status := tracking.RunFailed
	if ctx.Err() != nil {
		status = tracking.RunKilled
		ctx = context.WithoutCancel(ctx)
	}
	if err := run.End(ctx, status); err != nil {
		log.Error(err, "failed to end run", "status", status)
	}
}
