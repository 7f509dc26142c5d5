package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bgdnvk/diabrisk/internal/artifact"
	"github.com/bgdnvk/diabrisk/internal/config"
	"github.com/bgdnvk/diabrisk/internal/inference"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <record-json>",
	Short: "Run the diagnostic model on one record",
	Long: `Run the diagnostic model on one record and print its raw prediction.

The record is the single positional argument; stdin is read when it is
omitted. Accepted fields, all optional (missing numbers default to 0):
  Name, Age, Glucose level (mg/dl), Insulin Level (μU/mL), BMI,
  Diabetes Pedigree, Skin Thickness (mm)

Artifact: diagnostic_model.json next to the binary unless --artifacts is set.

Output is one JSON line:
  {"Name": "Alice", "prediction": 1.0}`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, logger := setup(cmd)

		run := &inference.DiagnoseCommand{
			Load: func(ctx context.Context) (inference.PointModel, error) {
				return loadDiagnosticModel(ctx, settings, logger)
			},
			Logger: logger,
		}

		in := inference.Input{Stdin: cmd.InOrStdin(), Args: args}
		return exitStatus(run.Run(cmd.Context(), in, cmd.OutOrStdout()))
	},
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}

func loadDiagnosticModel(ctx context.Context, settings config.Settings, logger *slog.Logger) (inference.PointModel, error) {
	bundle, err := loadDiagnosticBundle(ctx, settings, logger)
	if err != nil {
		return nil, err
	}
	return bundle.Model, nil
}

func loadDiagnosticBundle(ctx context.Context, settings config.Settings, logger *slog.Logger) (*artifact.DiagnosticBundle, error) {
	ctx, cancel := context.WithTimeout(ctx, settings.Artifacts.Timeout)
	defer cancel()

	loader, closeFn, err := newLoader(ctx, settings, logger)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return loader.LoadDiagnostic(ctx)
}

func describeDiagnostic(bundle *artifact.DiagnosticBundle) []string {
	return []string{
		fmt.Sprintf("model:    %s (%s, %d trees, %d features)", bundle.Files[artifact.DiagnosticModelName],
			bundle.Model.Kind, len(bundle.Model.Trees), bundle.Model.Width()),
		fmt.Sprintf("order:    %v", inference.DiagnosticFeatures),
	}
}
