package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// LoadFailureMessage is the error text of the risk artifact-load envelope.
const LoadFailureMessage = "Failed to load model artifacts"

// Float marshals like a float in the JSON the model tooling emits: integral
// values keep a trailing ".0".
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("cannot encode %v as JSON", v)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return []byte(s), nil
}

// RiskSuccess is the risk command's success envelope.
type RiskSuccess struct {
	Success        bool   `json:"success"`
	RiskPercentage Float  `json:"risk_percentage"`
	RiskCategory   string `json:"risk_category"`
}

// RiskFailure is the risk command's per-request failure envelope.
type RiskFailure struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Traceback string `json:"traceback"`
}

// LoadFailure is the risk command's artifact-load failure envelope.
type LoadFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// DiagnosisSuccess is the diagnose command's success envelope.
type DiagnosisSuccess struct {
	Name       string `json:"Name"`
	Prediction Float  `json:"prediction"`
}

// DiagnosisFailure is the diagnose command's failure envelope.
type DiagnosisFailure struct {
	Error string `json:"error"`
}

func NewRiskSuccess(r RiskResult) RiskSuccess {
	return RiskSuccess{Success: true, RiskPercentage: Float(r.RiskPercentage), RiskCategory: r.RiskCategory}
}

func NewRiskFailure(err error, stack []byte) RiskFailure {
	return RiskFailure{Error: err.Error(), Traceback: Traceback(err, stack)}
}

func NewLoadFailure(err error) LoadFailure {
	return LoadFailure{Error: LoadFailureMessage, Details: err.Error()}
}

func NewDiagnosisSuccess(r DiagnosisResult) DiagnosisSuccess {
	return DiagnosisSuccess{Name: r.Name, Prediction: Float(r.Prediction)}
}

// Emit writes v as a single JSON line with one Write call.
func Emit(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// Traceback renders the error chain outermost first, one layer per line,
// followed by stack when it is not empty.
func Traceback(err error, stack []byte) string {
	var b strings.Builder
	b.WriteString("error chain (most recent wrap first):\n")
	writeChain(&b, err, 1)
	if len(stack) > 0 {
		b.WriteString("\n")
		b.Write(stack)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeChain(b *strings.Builder, err error, depth int) {
	for err != nil {
		fmt.Fprintf(b, "%s%T: %s\n", strings.Repeat("  ", depth), err, err.Error())

		if multi, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range multi.Unwrap() {
				writeChain(b, inner, depth+1)
			}
			return
		}
		err = errors.Unwrap(err)
	}
}
