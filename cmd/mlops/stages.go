package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/command"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/pipeline"
)

func NewSetupCmd(app *App) *cobra.Command {
	options := pipeline.SetupOptions{}
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "create local directories, the storage bucket and the dvc remote",
		Example: `
  # prepare a fresh checkout
  mlops setup

  # and fetch data tracked by a previous run
  mlops setup --pull
		`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			secrets, err := app.Secrets()
			if err != nil {
				return err
			}
			buckets, err := app.Storage(ctx)
			if err != nil {
				return err
			}
			return pipeline.Setup(ctx, app.Settings, secrets, buckets, command.DVC{Runner: app.Runner()}, options)
		},
	}
	cmd.Flags().BoolVar(&options.Pull, "pull", options.Pull, "run dvc pull after configuring the remote")
	return cmd
}

func NewIngestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "write the reference iris dataset to paths.raw_data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.Ingest(cmd.Context(), app.Settings)
		},
	}
}

func NewPreprocessCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess",
		Short: "split raw data into stratified train and test partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.Preprocess(cmd.Context(), app.Settings)
		},
	}
}

func NewTrainCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "train, evaluate and register the configured classifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tracker, err := app.Tracker(ctx)
			if err != nil {
				return err
			}
			models, err := app.Registry(ctx)
			if err != nil {
				return err
			}
			result, err := pipeline.Train(ctx, app.Settings, tracker, models)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s version %d (run %s, test accuracy %.4f)\n",
				app.Settings.Training.RegisteredModelName, result.Version, result.RunID, result.Metrics["test_accuracy"])
			return nil
		},
	}
}

func NewPredictCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "predict",
		Short: "score the test partition with a registered model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tracker, err := app.Tracker(ctx)
			if err != nil {
				return err
			}
			models, err := app.Registry(ctx)
			if err != nil {
				return err
			}
			result, err := pipeline.Predict(ctx, app.Settings, tracker, models)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d predictions to %s\n", result.Predictions, result.OutputPath)
			return nil
		},
	}
}

func NewVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "reproduce the dvc pipeline, commit dvc.lock and push artifacts",
		Long: `Runs dvc repro, git add dvc.lock, git commit and dvc push in that order.
The first failing step stops the rest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := app.Runner()
			return pipeline.Version(cmd.Context(), app.Settings, command.Git{Runner: runner}, command.DVC{Runner: runner}, time.Now)
		},
	}
}
