package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleRisk = `{"gender":"Female","age":45,"hypertension":0,"heart_disease":0,"smoking_history":"never","bmi":27.3,"HbA1c_level":6.1,"blood_glucose_level":140}`

// riskFixture splits on HbA1c_level (index 6) at 6.5.
var riskFixture = map[string]string{
	"rfmodelfinal.json": `{
  "kind": "classifier",
  "n_features_in": 8,
  "classes": [0, 1],
  "trees": [{"nodes": [
    {"feature": 6, "threshold": 6.5, "left": 1, "right": 2, "value": [8, 2]},
    {"feature": -2, "threshold": -2, "left": -1, "right": -1, "value": [7, 3]},
    {"feature": -2, "threshold": -2, "left": -1, "right": -1, "value": [1, 9]}
  ]}]
}`,
	"scaler.json": `{
  "kind": "standard",
  "feature_names_in": ["gender", "age", "hypertension", "heart_disease", "smoking_history", "bmi", "HbA1c_level", "blood_glucose_level"],
  "mean": [0, 0, 0, 0, 0, 0, 0, 0],
  "scale": [1, 1, 1, 1, 1, 1, 1, 1]
}`,
	"label_encoders.yaml": `gender: [Female, Male, Other]
smoking_history: [No Info, current, ever, former, never, not current]
`,
}

// diagnosticFixture splits on glucose (index 1) at 125.
var diagnosticFixture = map[string]string{
	"diagnostic_model.json": `{
  "kind": "regressor",
  "n_features_in": 6,
  "trees": [{"nodes": [
    {"feature": 1, "threshold": 125, "left": 1, "right": 2, "value": [0.5]},
    {"feature": -2, "threshold": -2, "left": -1, "right": -1, "value": [0]},
    {"feature": -2, "threshold": -2, "left": -1, "right": -1, "value": [1]}
  ]}]
}`,
}

func writeArtifacts(t *testing.T, sets ...map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for _, files := range sets {
		for name, content := range files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
		}
	}
	return dir
}

// resetFlags restores every flag so runs of the shared command tree do not
// leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestRisk_Stdin(t *testing.T) {
	dir := writeArtifacts(t, riskFixture)

	stdout, _, err := execute(t, exampleRisk, "risk", "--artifacts", dir)
	require.NoError(t, err)
	assert.Equal(t, `{"success":true,"risk_percentage":30.0,"risk_category":"Pre-Diabetic"}`+"\n", stdout)
}

func TestRisk_ArgumentIsDeterministic(t *testing.T) {
	dir := writeArtifacts(t, riskFixture)
	input := strings.Replace(exampleRisk, `"HbA1c_level":6.1`, `"HbA1c_level":8.2`, 1)

	first, _, err := execute(t, "", "risk", "--artifacts", dir, input)
	require.NoError(t, err)
	second, _, err := execute(t, "", "risk", "--artifacts", dir, input)
	require.NoError(t, err)

	assert.Equal(t, `{"success":true,"risk_percentage":90.0,"risk_category":"Diabetic"}`+"\n", first)
	assert.Equal(t, first, second)
}

func TestRisk_MissingFields(t *testing.T) {
	dir := writeArtifacts(t, riskFixture)

	stdout, _, err := execute(t, `{"gender":"Female","age":45}`, "risk", "--artifacts", dir)
	assert.Equal(t, 1, exitCode(err))

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &env))
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "Missing required fields: [hypertension, heart_disease, smoking_history, bmi, HbA1c_level, blood_glucose_level]", env["error"])
	assert.IsType(t, "", env["traceback"])
}

func TestRisk_LoadFailure(t *testing.T) {
	stdout, stderr, err := execute(t, exampleRisk, "risk", "--artifacts", t.TempDir())
	assert.Equal(t, 1, exitCode(err))

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &env))
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "Failed to load model artifacts", env["error"])
	assert.Contains(t, env["details"], "rfmodelfinal")
	assert.NotContains(t, env, "traceback")
	assert.Contains(t, stderr, "artifact load failed")
}

func TestRisk_UnseenCategoryPolicy(t *testing.T) {
	dir := writeArtifacts(t, riskFixture)
	input := strings.Replace(exampleRisk, `"never"`, `"vaping"`, 1)

	stdout, _, err := execute(t, input, "risk", "--artifacts", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"success":true`)

	stdout, _, err = execute(t, input, "risk", "--artifacts", dir, "--unseen", "error")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, stdout, "smoking_history")
	assert.Contains(t, stdout, "vaping")
}

func TestRisk_CaseFold(t *testing.T) {
	dir := writeArtifacts(t, riskFixture)
	input := strings.Replace(exampleRisk, `"Female"`, `"female"`, 1)

	_, _, err := execute(t, input, "risk", "--artifacts", dir, "--unseen", "error")
	assert.Equal(t, 1, exitCode(err))

	stdout, _, err := execute(t, input, "risk", "--artifacts", dir, "--unseen", "error", "--case-fold")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"success":true`)
}

func TestRisk_BadUnseenPolicy(t *testing.T) {
	dir := writeArtifacts(t, riskFixture)

	stdout, _, err := execute(t, exampleRisk, "risk", "--artifacts", dir, "--unseen", "guess")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, stdout, `"error":"Failed to load model artifacts"`)
	assert.Contains(t, stdout, "guess")
}

func TestDiagnose(t *testing.T) {
	dir := writeArtifacts(t, diagnosticFixture)

	stdout, _, err := execute(t, "", "diagnose", "--artifacts", dir, `{"Name":"Alice","Age":50,"Glucose level (mg/dl)":140}`)
	require.NoError(t, err)
	assert.Equal(t, `{"Name":"Alice","prediction":1.0}`+"\n", stdout)

	stdout, _, err = execute(t, `{"Age":30}`, "diagnose", "--artifacts", dir)
	require.NoError(t, err)
	assert.Equal(t, `{"Name":"Unknown","prediction":0.0}`+"\n", stdout)
}

func TestDiagnose_Failures(t *testing.T) {
	stdout, _, err := execute(t, "", "diagnose", "--artifacts", t.TempDir(), `{}`)
	assert.Equal(t, 1, exitCode(err))
	var env map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &env))
	assert.Len(t, env, 1)
	assert.Contains(t, env["error"], "diagnostic_model")

	dir := writeArtifacts(t, diagnosticFixture)
	stdout, _, err = execute(t, "", "diagnose", "--artifacts", dir, `{"BMI":"heavy"}`)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, stdout, "BMI")
}

func TestArtifactsInspect(t *testing.T) {
	dir := writeArtifacts(t, riskFixture, diagnosticFixture)

	stdout, _, err := execute(t, "", "artifacts", "inspect", "--artifacts", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "rfmodelfinal.json")
	assert.Contains(t, stdout, "label_encoders.yaml")
	assert.Contains(t, stdout, `gender: [Female Male Other] (fallback "Female")`)

	stdout, _, err = execute(t, "", "artifacts", "inspect", "--variant", "diagnose", "--artifacts", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "regressor")

	_, _, err = execute(t, "", "artifacts", "inspect", "--variant", "other", "--artifacts", dir)
	assert.Error(t, err)
}

func TestArtifactsDigestAndVerify(t *testing.T) {
	dir := writeArtifacts(t, riskFixture)

	var paths []string
	for name := range riskFixture {
		paths = append(paths, filepath.Join(dir, name))
	}
	manifest, _, err := execute(t, "", append([]string{"artifacts", "digest"}, paths...)...)
	require.NoError(t, err)
	assert.Contains(t, manifest, "algorithm: blake2b-256")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644))

	stdout, _, err := execute(t, "", "artifacts", "verify", "--artifacts", dir)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(stdout, "ok "))

	stdout, _, err = execute(t, exampleRisk, "risk", "--artifacts", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"success":true`)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scaler.json"), []byte(riskFixture["scaler.json"]+" "), 0o644))

	stdout, _, err = execute(t, "", "artifacts", "verify", "--artifacts", dir)
	assert.Error(t, err)
	assert.Contains(t, stdout, "FAIL  scaler.json")

	stdout, _, err = execute(t, exampleRisk, "risk", "--artifacts", dir)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, stdout, "digest mismatch")

	_, _, err = execute(t, exampleRisk, "risk", "--artifacts", dir, "--verify=false")
	assert.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	stdout, _, err := execute(t, "", "config", "show", "--artifacts", "s3://models/diabetes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "location: s3://models/diabetes")
	assert.Contains(t, stdout, "unseen: fallback")
}

func TestConfigInit(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	resetFlags(rootCmd)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"config", "init"})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(filepath.Join(home, ".diabrisk.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "unseen: fallback")
	assert.Contains(t, stdout.String(), "Configuration file created")
}

func TestRisk_WithoutHomeDirectory(t *testing.T) {
	dir := writeArtifacts(t, riskFixture)
	t.Setenv("HOME", "")
	resetFlags(rootCmd)

	var stdout bytes.Buffer
	rootCmd.SetIn(strings.NewReader(exampleRisk))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"risk", "--artifacts", dir})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, `{"success":true,"risk_percentage":30.0,"risk_category":"Pre-Diabetic"}`+"\n", stdout.String())
}
