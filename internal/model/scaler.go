package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrDimension is returned when a feature vector does not have the width an
// artifact was trained with.
var ErrDimension = errors.New("feature dimension mismatch")

// ScalerKind selects the transform a Scaler applies.
type ScalerKind string

const (
	// StandardScaling computes (x - mean) / scale.
	StandardScaling ScalerKind = "standard"
	// MinMaxScaling computes x*scale + min.
	MinMaxScaling ScalerKind = "minmax"
)

// Scaler is a fitted per-feature scaler.
type Scaler struct {
	Kind           ScalerKind `json:"kind" yaml:"kind"`
	FeatureNamesIn []string   `json:"feature_names_in,omitempty" yaml:"feature_names_in,omitempty"`
	NFeaturesIn    int        `json:"n_features_in,omitempty" yaml:"n_features_in,omitempty"`
	Mean           []float64  `json:"mean,omitempty" yaml:"mean,omitempty"`
	Scale          []float64  `json:"scale" yaml:"scale"`
	Min            []float64  `json:"min,omitempty" yaml:"min,omitempty"`
}

// Validate checks that the fitted parameters agree on the feature count and
// fills defaults left out of the artifact.
func (s *Scaler) Validate() error {
	if s.Kind == "" {
		s.Kind = StandardScaling
	}

	width := len(s.Scale)
	if width == 0 {
		return errors.New("scaler has no scale parameters")
	}
	if s.NFeaturesIn == 0 {
		s.NFeaturesIn = width
	}
	if s.NFeaturesIn != width {
		return fmt.Errorf("scaler declares %d features but has %d scale values", s.NFeaturesIn, width)
	}
	if len(s.FeatureNamesIn) > 0 && len(s.FeatureNamesIn) != width {
		return fmt.Errorf("scaler has %d feature names but %d scale values", len(s.FeatureNamesIn), width)
	}

	switch s.Kind {
	case StandardScaling:
		if s.Mean != nil && len(s.Mean) != width {
			return fmt.Errorf("scaler has %d means but %d scale values", len(s.Mean), width)
		}
	case MinMaxScaling:
		if len(s.Min) != width {
			return fmt.Errorf("minmax scaler has %d min values but %d scale values", len(s.Min), width)
		}
	default:
		return fmt.Errorf("unknown scaler kind %q", s.Kind)
	}
	return nil
}

// Features returns the column order the scaler was fitted with, or nil when
// the artifact did not record it.
func (s *Scaler) Features() []string {
	return s.FeatureNamesIn
}

// Width is the number of features the scaler expects.
func (s *Scaler) Width() int {
	return len(s.Scale)
}

// Transform scales a single feature vector.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	n := s.Width()
	if len(x) != n {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrDimension, n, len(x))
	}

	out := mat.NewVecDense(n, append([]float64(nil), x...))
	switch s.Kind {
	case MinMaxScaling:
		out.MulElemVec(out, mat.NewVecDense(n, append([]float64(nil), s.Scale...)))
		out.AddVec(out, mat.NewVecDense(n, append([]float64(nil), s.Min...)))
	default:
		if s.Mean != nil {
			out.SubVec(out, mat.NewVecDense(n, append([]float64(nil), s.Mean...)))
		}
		out.DivElemVec(out, mat.NewVecDense(n, nonZero(s.Scale)))
	}
	return out.RawVector().Data, nil
}

// nonZero replaces zero-variance scales with 1 so constant features pass
// through unchanged.
func nonZero(scale []float64) []float64 {
	out := make([]float64, len(scale))
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		out[i] = v
	}
	return out
}
