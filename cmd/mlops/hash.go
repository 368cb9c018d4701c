package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/fileio"
)

func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "hash <file>...",
		Short:       "print the sha256 of files",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{annotationNoSettings: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, file := range args {
				sum, err := fileio.FileSHA256(file)
				if err != nil {
					return errors.NewDataInvalidError(fmt.Sprintf("hash %s: %v", file, err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, file)
			}
			return nil
		},
	}
}
