package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bgdnvk/diabrisk/internal/artifact"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect and verify model artifacts",
	Long:  `Inspect the trained artifacts the inference commands load and check them against their manifest.`,
}

var artifactsInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the artifacts and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, logger := setup(cmd)
		variant, _ := cmd.Flags().GetString("variant")

		ctx := cmd.Context()
		var lines []string
		switch variant {
		case "risk":
			bundle, err := loadRiskBundle(ctx, settings, logger)
			if err != nil {
				return fmt.Errorf("failed to load risk artifacts: %w", err)
			}
			lines = describeRisk(bundle)
		case "diagnose":
			bundle, err := loadDiagnosticBundle(ctx, settings, logger)
			if err != nil {
				return fmt.Errorf("failed to load diagnostic artifacts: %w", err)
			}
			lines = describeDiagnostic(bundle)
		default:
			return fmt.Errorf("unknown variant %q (want risk or diagnose)", variant)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Artifacts at %s:\n", settings.Artifacts.Location)
		for _, line := range lines {
			fmt.Fprintln(out, "  "+line)
		}
		return nil
	},
}

var artifactsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every artifact listed in manifest.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, _ := setup(cmd)

		ctx, cancel := context.WithTimeout(cmd.Context(), settings.Artifacts.Timeout)
		defer cancel()

		src, err := artifact.NewSource(ctx, settings.Artifacts.Location, settings.SourceOptions())
		if err != nil {
			return err
		}
		defer src.Close()

		manifest, err := artifact.LoadManifest(ctx, src)
		if err != nil {
			return err
		}
		if manifest == nil {
			return fmt.Errorf("no %s at %s", artifact.ManifestName, src.Location())
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, status := range artifact.Verify(ctx, src, manifest) {
			switch {
			case status.Err != nil:
				failed++
				fmt.Fprintf(out, "FAIL  %s: %v\n", status.Name, status.Err)
			case !status.OK():
				failed++
				fmt.Fprintf(out, "FAIL  %s: digest %s, expected %s\n", status.Name, status.Actual, status.Expected)
			default:
				fmt.Fprintf(out, "ok    %s\n", status.Name)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d artifacts failed verification", failed, len(manifest.Files))
		}
		return nil
	},
}

var artifactsDigestCmd = &cobra.Command{
	Use:   "digest <file>...",
	Short: "Print a manifest for local artifact files",
	Long: `Print a manifest.yaml document listing the blake2b-256 digest of each file.

Example:
  diabrisk artifacts digest rfmodelfinal.json scaler.json label_encoders.json > manifest.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := make(map[string][]byte, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			files[filepath.Base(path)] = data
		}

		doc, err := artifact.NewManifest(files).Marshal()
		if err != nil {
			return fmt.Errorf("failed to render manifest: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(doc)
		return err
	},
}

func init() {
	artifactsInspectCmd.Flags().String("variant", "risk", "artifact set to inspect: risk or diagnose")

	artifactsCmd.AddCommand(artifactsInspectCmd)
	artifactsCmd.AddCommand(artifactsVerifyCmd)
	artifactsCmd.AddCommand(artifactsDigestCmd)
	rootCmd.AddCommand(artifactsCmd)
}
