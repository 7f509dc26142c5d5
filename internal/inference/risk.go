package inference

import (
	"fmt"
	"math"
	"strconv"

	"github.com/bgdnvk/diabrisk/internal/model"
)

// RiskFields are the fields a risk request must carry, in model order.
var RiskFields = []string{
	"gender",
	"age",
	"hypertension",
	"heart_disease",
	"smoking_history",
	"bmi",
	"HbA1c_level",
	"blood_glucose_level",
}

// Risk categories, from lowest to highest.
const (
	LowRisk     = "Low Risk"
	PreDiabetic = "Pre-Diabetic"
	Diabetic    = "Diabetic"
)

// Lower bounds of the upper two categories, in percent.
const (
	preDiabeticFrom = 30
	diabeticFrom    = 50
)

// ProbabilityModel is a classifier exposing class probabilities.
type ProbabilityModel interface {
	PredictProba(x []float64) ([]float64, error)
	ClassLabels() []float64
}

// RiskArtifacts is the read-only bundle a risk prediction runs on.
type RiskArtifacts struct {
	Model    ProbabilityModel
	Scaler   FeatureScaler
	Encoders map[string]CategoryEncoder
}

// RiskResult is the presentation of one positive-class probability.
type RiskResult struct {
	RiskPercentage float64
	RiskCategory   string
}

// RiskPercentage converts a probability to a percentage rounded to two
// decimals and clamped to [0, 100]. Rounding is decided on the exact value of
// probability*100, so 49.994999... stays 49.99.
func RiskPercentage(probability float64) float64 {
	pct, err := strconv.ParseFloat(strconv.FormatFloat(probability*100, 'f', 2, 64), 64)
	if err != nil {
		return 0
	}
	return math.Max(0, math.Min(100, pct))
}

// RiskCategory buckets a percentage. Each bucket includes its lower bound.
func RiskCategory(pct float64) string {
	switch {
	case pct < preDiabeticFrom:
		return LowRisk
	case pct < diabeticFrom:
		return PreDiabetic
	default:
		return Diabetic
	}
}

// RiskPredictor runs the probability-based risk pipeline.
type RiskPredictor struct {
	model       ProbabilityModel
	transformer *Transformer
}

func NewRiskPredictor(artifacts RiskArtifacts, opts model.EncodeOptions) *RiskPredictor {
	return &RiskPredictor{
		model: artifacts.Model,
		transformer: &Transformer{
			Encoders: artifacts.Encoders,
			Scaler:   artifacts.Scaler,
			Columns:  RiskFields,
			Options:  opts,
		},
	}
}

// Predict validates rec, rebuilds its feature vector and scores it. The model
// is never called for an invalid record.
func (p *RiskPredictor) Predict(rec Record) (RiskResult, error) {
	if err := Validate(rec, RiskFields); err != nil {
		return RiskResult{}, err
	}

	x, err := p.transformer.Transform(rec)
	if err != nil {
		return RiskResult{}, err
	}

	proba, err := p.model.PredictProba(x)
	if err != nil {
		return RiskResult{}, fmt.Errorf("%w: %w", ErrPrediction, err)
	}
	positive := positiveClass(p.model.ClassLabels())
	if positive >= len(proba) {
		return RiskResult{}, fmt.Errorf("%w: model returned %d probabilities for %d classes",
			ErrPrediction, len(proba), len(p.model.ClassLabels()))
	}
	probability := proba[positive]
	if math.IsNaN(probability) {
		return RiskResult{}, fmt.Errorf("%w: model returned NaN probability", ErrPrediction)
	}

	pct := RiskPercentage(probability)
	return RiskResult{RiskPercentage: pct, RiskCategory: RiskCategory(pct)}, nil
}

// positiveClass is the index of label 1, or the last class when the model
// uses other labels.
func positiveClass(labels []float64) int {
	for i, label := range labels {
		if label == 1 {
			return i
		}
	}
	if len(labels) == 0 {
		return 1
	}
	return len(labels) - 1
}
