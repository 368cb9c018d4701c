package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/types"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/units"
)

func NewModelsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "inspect and manage registered models",
	}
	cmd.AddCommand(
		NewModelsListCmd(app),
		NewModelsTransitionCmd(app),
	)
	return cmd
}

func NewModelsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [name]",
		Short: "list registered models, or the versions of one model",
		Example: `
  mlops models list
  mlops models list iris-classifier
		`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			models, err := app.Registry(ctx)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())

			if len(args) == 0 {
				list, err := models.Models(ctx)
				if err != nil {
					return err
				}
				t.AppendHeader(table.Row{"Name", "Latest Version", "Description", "Updated"})
				for _, item := range list {
					t.AppendRow(table.Row{
						item.Name,
						item.Annotations[types.AnnotationLatest],
						item.Annotations[types.AnnotationDescription],
						item.Modified.Format(time.RFC3339),
					})
				}
				t.Render()
				return nil
			}

			versions, err := models.Versions(ctx, args[0])
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Version", "Stage", "Run", "Size", "Digest", "Created"})
			for _, v := range versions {
				t.AppendRow(table.Row{
					v.Version,
					v.Stage,
					v.RunID,
					units.HumanSize(v.Model.Size),
					shortDigest(v.Model.Digest.Encoded()),
					v.Created.Format(time.RFC3339),
				})
			}
			t.Render()
			return nil
		},
	}
	return cmd
}

func NewModelsTransitionCmd(app *App) *cobra.Command {
	archiveExisting := false
	cmd := &cobra.Command{
		Use:   "transition <name> <version> <stage>",
		Short: "move a model version to another stage",
		Example: `
  # promote version 3 and archive the previous production version
  mlops models transition iris-classifier 3 Production --archive-existing
		`,
		Args: cobra.ExactArgs(3),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 2 {
				return types.Stages, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			version, err := strconv.Atoi(args[1])
			if err != nil || version <= 0 {
				return errors.NewParameterInvalidError(fmt.Sprintf("invalid version %q", args[1]))
			}
			models, err := app.Registry(ctx)
			if err != nil {
				return err
			}
			updated, err := models.Transition(ctx, args[0], version, args[2], archiveExisting)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", updated.URI(), updated.Stage)
			return nil
		},
	}
	cmd.Flags().BoolVar(&archiveExisting, "archive-existing", archiveExisting, "archive other versions currently in the target stage")
	return cmd
}

func shortDigest(encoded string) string {
	if len(encoded) > 12 {
		return encoded[:12]
	}
	return encoded
}
