package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/command"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/config"
)

const commitTimeLayout = "2006-01-02 15:04:05"

// CommitMessage formats the experiment commit message for the given time.
func CommitMessage(template string, clock Clock) string {
	return fmt.Sprintf("%s (%s)", template, clock().Format(commitTimeLayout))
}

// Version reproduces the dvc pipeline, commits the resulting lock file and
// pushes tracked artifacts. Steps run strictly in order and the first failure
// stops the rest.
func Version(ctx context.Context, settings *config.Settings, git command.Git, dvc command.DVC, clock Clock) error {
	log := logr.FromContextOrDiscard(ctx)

	names, _, err := command.Stages(filepath.Join(settings.Root, command.DVCFile))
	if err != nil {
		return err
	}
	log.Info("reproducing dvc pipeline", "step", "1/4", "stages", names)
	if err := dvc.Repro(ctx); err != nil {
		return err
	}

	log.Info("staging results", "step", "2/4", "files", []string{command.DVCLockFile})
	if err := git.Add(ctx, command.DVCLockFile); err != nil {
		return err
	}

	message := CommitMessage(settings.MLflow.CommitMessageTemplate, clock)
	log.Info("committing experiment results", "step", "3/4", "message", message)
	if err := git.Commit(ctx, message); err != nil {
		return err
	}

	log.Info("pushing dvc artifacts", "step", "4/4")
	if err := dvc.Push(ctx); err != nil {
		return err
	}
	log.Info("experiment versioning complete")
	return nil
}
