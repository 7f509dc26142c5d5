package inference

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/bgdnvk/diabrisk/internal/model"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// RiskCommand runs one risk invocation: load artifacts, read, validate,
// transform, predict, emit.
type RiskCommand struct {
	Load   func(ctx context.Context) (RiskArtifacts, error)
	Encode model.EncodeOptions
	// Debug appends the goroutine stack to failure tracebacks.
	Debug  bool
	Logger *slog.Logger
}

// Run executes the pipeline and returns the process exit code. Exactly one
// JSON object is written to out.
func (c *RiskCommand) Run(ctx context.Context, in Input, out io.Writer) int {
	logger := loggerOrDefault(c.Logger)

	artifacts, err := c.Load(ctx)
	if err != nil {
		logger.Error("artifact load failed", "error", fmt.Errorf("%w: %w", ErrArtifactLoad, err))
		return emit(logger, out, NewLoadFailure(err), ExitFailure)
	}

	result, err := c.predict(in, artifacts)
	if err != nil {
		logger.Error("risk request failed", "error", err)
		var stack []byte
		if c.Debug {
			stack = debug.Stack()
		}
		return emit(logger, out, NewRiskFailure(err, stack), ExitFailure)
	}

	logger.Debug("risk computed", "risk_percentage", result.RiskPercentage, "risk_category", result.RiskCategory)
	return emit(logger, out, NewRiskSuccess(result), ExitOK)
}

func (c *RiskCommand) predict(in Input, artifacts RiskArtifacts) (RiskResult, error) {
	raw, channel, err := in.Read()
	if err != nil {
		return RiskResult{}, err
	}
	rec, err := ParseRecord(raw, channel)
	if err != nil {
		return RiskResult{}, err
	}
	return NewRiskPredictor(artifacts, c.Encode).Predict(rec)
}

// DiagnoseCommand runs one diagnose invocation.
type DiagnoseCommand struct {
	Load   func(ctx context.Context) (PointModel, error)
	Logger *slog.Logger
}

// Run executes the pipeline and returns the process exit code.
func (c *DiagnoseCommand) Run(ctx context.Context, in Input, out io.Writer) int {
	logger := loggerOrDefault(c.Logger)

	m, err := c.Load(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrArtifactLoad, err)
		logger.Error("artifact load failed", "error", err)
		return emit(logger, out, DiagnosisFailure{Error: err.Error()}, ExitFailure)
	}

	result, err := c.predict(in, m)
	if err != nil {
		logger.Error("diagnose request failed", "error", err)
		return emit(logger, out, DiagnosisFailure{Error: err.Error()}, ExitFailure)
	}

	logger.Debug("diagnosis computed", "name", result.Name, "prediction", result.Prediction)
	return emit(logger, out, NewDiagnosisSuccess(result), ExitOK)
}

func (c *DiagnoseCommand) predict(in Input, m PointModel) (DiagnosisResult, error) {
	raw, channel, err := in.Read()
	if err != nil {
		return DiagnosisResult{}, err
	}
	rec, err := ParseRecord(raw, channel)
	if err != nil {
		return DiagnosisResult{}, err
	}
	return NewDiagnosePredictor(m).Predict(rec)
}

// emit writes v and returns code, or ExitFailure when writing fails.
func emit(logger *slog.Logger, out io.Writer, v any, code int) int {
	if err := Emit(out, v); err != nil {
		logger.Error("could not emit response", "error", err)
		return ExitFailure
	}
	return code
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
