package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bgdnvk/diabrisk/internal/artifact"
	"github.com/bgdnvk/diabrisk/internal/config"
	"github.com/bgdnvk/diabrisk/internal/inference"
)

var riskCmd = &cobra.Command{
	Use:   "risk [record-json]",
	Short: "Score the diabetes risk of one record",
	Long: `Score the diabetes risk of one record.

The record is read from stdin, or from the single positional argument when
given. Required fields: gender, age, hypertension, heart_disease,
smoking_history, bmi, HbA1c_level, blood_glucose_level.

Artifacts (next to the binary unless --artifacts is set):
  rfmodelfinal.json    random-forest classifier
  scaler.json          fitted feature scaler
  label_encoders.json  per-column category lists

Output is one JSON line:
  {"success": true, "risk_percentage": 42.5, "risk_category": "Pre-Diabetic"}

Examples:
  echo '{"gender":"Female","age":45,...}' | diabrisk risk
  diabrisk risk --unseen error '{"gender":"Female","age":45,...}'`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, logger := setup(cmd)

		run := &inference.RiskCommand{
			Load: func(ctx context.Context) (inference.RiskArtifacts, error) {
				return loadRiskArtifacts(ctx, settings, logger)
			},
			Debug:  settings.Debug,
			Logger: logger,
		}
		if opts, err := settings.EncodeOptions(); err == nil {
			run.Encode = opts
		} else {
			run.Load = func(context.Context) (inference.RiskArtifacts, error) {
				return inference.RiskArtifacts{}, err
			}
		}

		in := inference.Input{Stdin: cmd.InOrStdin(), Args: args}
		return exitStatus(run.Run(cmd.Context(), in, cmd.OutOrStdout()))
	},
}

func init() {
	riskCmd.Flags().String("unseen", "fallback", "policy for categories unseen in training: fallback or error")
	riskCmd.Flags().Bool("case-fold", false, "match categories case-insensitively")

	viper.BindPFlag("encoding.unseen", riskCmd.Flags().Lookup("unseen"))
	viper.BindPFlag("encoding.case_fold", riskCmd.Flags().Lookup("case-fold"))

	rootCmd.AddCommand(riskCmd)
}

// newLoader opens the configured artifact location. The returned close
// function releases remote clients.
func newLoader(ctx context.Context, settings config.Settings, logger *slog.Logger) (*artifact.Loader, func(), error) {
	src, err := artifact.NewSource(ctx, settings.Artifacts.Location, settings.SourceOptions())
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := src.Close(); err != nil {
			logger.Warn("closing artifact source", "location", src.Location(), "error", err)
		}
	}
	return artifact.NewLoader(src, settings.Artifacts.Verify, logger), closeFn, nil
}

func loadRiskArtifacts(ctx context.Context, settings config.Settings, logger *slog.Logger) (inference.RiskArtifacts, error) {
	bundle, err := loadRiskBundle(ctx, settings, logger)
	if err != nil {
		return inference.RiskArtifacts{}, err
	}
	return riskArtifacts(bundle), nil
}

func loadRiskBundle(ctx context.Context, settings config.Settings, logger *slog.Logger) (*artifact.RiskBundle, error) {
	ctx, cancel := context.WithTimeout(ctx, settings.Artifacts.Timeout)
	defer cancel()

	loader, closeFn, err := newLoader(ctx, settings, logger)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return loader.LoadRisk(ctx)
}

func riskArtifacts(bundle *artifact.RiskBundle) inference.RiskArtifacts {
	encoders := make(map[string]inference.CategoryEncoder, len(bundle.Encoders))
	for column, enc := range bundle.Encoders {
		encoders[column] = enc
	}
	return inference.RiskArtifacts{
		Model:    bundle.Model,
		Scaler:   bundle.Scaler,
		Encoders: encoders,
	}
}

func describeRisk(bundle *artifact.RiskBundle) []string {
	lines := []string{
		fmt.Sprintf("model:    %s (%s, %d trees, classes %v)", bundle.Files[artifact.RiskModelName],
			bundle.Model.Kind, len(bundle.Model.Trees), bundle.Model.Classes),
		fmt.Sprintf("scaler:   %s (%s, %d features)", bundle.Files[artifact.ScalerName],
			bundle.Scaler.Kind, bundle.Scaler.Width()),
	}
	if names := bundle.Scaler.Features(); len(names) > 0 {
		lines = append(lines, fmt.Sprintf("order:    %v", names))
	} else {
		lines = append(lines, fmt.Sprintf("order:    %v (scaler has no feature names)", inference.RiskFields))
	}
	lines = append(lines, fmt.Sprintf("encoders: %s", bundle.Files[artifact.EncodersName]))
	for _, column := range bundle.Encoders.Columns() {
		enc := bundle.Encoders[column]
		lines = append(lines, fmt.Sprintf("  %s: %v (fallback %q)", column, enc.Classes, enc.Fallback()))
	}
	return lines
}
