package inference

import (
	"fmt"
	"math"
)

// DiagnosticFeatures is the fixed input order of the diagnostic model.
var DiagnosticFeatures = []string{
	"Age",
	"Glucose level (mg/dl)",
	"Insulin Level (μU/mL)",
	"BMI",
	"Diabetes Pedigree",
	"Skin Thickness (mm)",
}

// NameField is echoed back in the diagnose response.
const NameField = "Name"

// UnknownName replaces an absent or empty Name.
const UnknownName = "Unknown"

// PointModel returns a single numeric prediction.
type PointModel interface {
	Predict(x []float64) (float64, error)
	Width() int
}

// DiagnosisResult is the outcome of one diagnose request.
type DiagnosisResult struct {
	Name       string
	Prediction float64
}

// DiagnosePredictor runs the direct-prediction pipeline.
type DiagnosePredictor struct {
	model PointModel
}

func NewDiagnosePredictor(m PointModel) *DiagnosePredictor {
	return &DiagnosePredictor{model: m}
}

// Predict builds the fixed-order vector from rec, defaulting absent fields to
// 0, and returns the model output with the echoed name.
func (p *DiagnosePredictor) Predict(rec Record) (DiagnosisResult, error) {
	if w := p.model.Width(); w != len(DiagnosticFeatures) {
		return DiagnosisResult{}, fmt.Errorf("%w: model expects %d features, diagnose provides %d",
			ErrPrediction, w, len(DiagnosticFeatures))
	}

	x := make([]float64, len(DiagnosticFeatures))
	for i, field := range DiagnosticFeatures {
		v, ok := rec[field]
		if !ok || v == nil {
			continue
		}
		f, err := toFloat(v)
		if err != nil {
			return DiagnosisResult{}, fmt.Errorf("%w: field %q: %w", ErrTransform, field, err)
		}
		x[i] = f
	}

	prediction, err := p.model.Predict(x)
	if err != nil {
		return DiagnosisResult{}, fmt.Errorf("%w: %w", ErrPrediction, err)
	}
	if math.IsNaN(prediction) || math.IsInf(prediction, 0) {
		return DiagnosisResult{}, fmt.Errorf("%w: model returned %v", ErrPrediction, prediction)
	}

	return DiagnosisResult{Name: displayName(rec[NameField]), Prediction: prediction}, nil
}

func displayName(v any) string {
	if v == nil {
		return UnknownName
	}
	name := toCategory(v)
	if name == "" {
		return UnknownName
	}
	return name
}
