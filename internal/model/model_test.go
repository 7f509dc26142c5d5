package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnseenPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    UnseenPolicy
		wantErr bool
	}{
		{in: "", want: UnseenFallback},
		{in: "fallback", want: UnseenFallback},
		{in: " Error ", want: UnseenError},
		{in: "fail", want: UnseenError},
		{in: "ignore", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUnseenPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLabelEncoder_Transform(t *testing.T) {
	enc, err := NewLabelEncoder("smoking_history", []string{"No Info", "current", "ever", "former", "never", "not current"})
	require.NoError(t, err)

	code, err := enc.Transform("never", EncodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, code)

	t.Run("unseen falls back to first class every time", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			code, err := enc.Transform("sometimes", EncodeOptions{Unseen: UnseenFallback})
			require.NoError(t, err)
			assert.Equal(t, 0, code)
		}
		assert.Equal(t, "No Info", enc.Fallback())
	})

	t.Run("unseen fails under error policy", func(t *testing.T) {
		_, err := enc.Transform("sometimes", EncodeOptions{Unseen: UnseenError})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnseenCategory))
		assert.Contains(t, err.Error(), "smoking_history")
		assert.Contains(t, err.Error(), "sometimes")
	})

	t.Run("case folding is opt-in", func(t *testing.T) {
		code, err := enc.Transform("NEVER", EncodeOptions{Unseen: UnseenError, CaseFold: true})
		require.NoError(t, err)
		assert.Equal(t, 4, code)

		_, err = enc.Transform("NEVER", EncodeOptions{Unseen: UnseenError})
		assert.Error(t, err)
	})
}

func TestNewLabelEncoder_Invalid(t *testing.T) {
	_, err := NewLabelEncoder("gender", nil)
	assert.Error(t, err)

	_, err = NewLabelEncoder("gender", []string{"Female", "Female"})
	assert.Error(t, err)
}

func TestEncoders_Columns(t *testing.T) {
	encoders, err := NewEncoders(map[string][]string{
		"smoking_history": {"never"},
		"gender":          {"Female", "Male"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"gender", "smoking_history"}, encoders.Columns())
}

func TestScaler_Standard(t *testing.T) {
	s := &Scaler{
		FeatureNamesIn: []string{"a", "b", "c"},
		Mean:           []float64{1, 2, 3},
		Scale:          []float64{2, 0, 4},
	}
	require.NoError(t, s.Validate())
	assert.Equal(t, StandardScaling, s.Kind)
	assert.Equal(t, 3, s.NFeaturesIn)

	in := []float64{5, 7, 3}
	out, err := s.Transform(in)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 5, 0}, out, 1e-12)
	assert.Equal(t, []float64{5, 7, 3}, in, "input must not be modified")
}

func TestScaler_MinMax(t *testing.T) {
	s := &Scaler{Kind: MinMaxScaling, Scale: []float64{0.5, 0.1}, Min: []float64{-1, 0}}
	require.NoError(t, s.Validate())

	out, err := s.Transform([]float64{4, 10})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, out, 1e-12)
}

func TestScaler_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		scaler Scaler
	}{
		{name: "no scale", scaler: Scaler{}},
		{name: "mean length", scaler: Scaler{Mean: []float64{1}, Scale: []float64{1, 2}}},
		{name: "names length", scaler: Scaler{FeatureNamesIn: []string{"a"}, Scale: []float64{1, 2}}},
		{name: "declared width", scaler: Scaler{NFeaturesIn: 3, Scale: []float64{1, 2}}},
		{name: "minmax without min", scaler: Scaler{Kind: MinMaxScaling, Scale: []float64{1}}},
		{name: "unknown kind", scaler: Scaler{Kind: "robust", Scale: []float64{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.scaler.Validate())
		})
	}
}

func TestScaler_DimensionMismatch(t *testing.T) {
	s := &Scaler{Scale: []float64{1, 1}}
	require.NoError(t, s.Validate())

	_, err := s.Transform([]float64{1})
	assert.True(t, errors.Is(err, ErrDimension))
}

// stump splits on feature 0 at 0.5.
func stump(left, right []float64) Tree {
	return Tree{Nodes: []Node{
		{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
		{Left: leaf, Right: leaf, Value: left},
		{Left: leaf, Right: leaf, Value: right},
	}}
}

func TestForest_PredictProba(t *testing.T) {
	f := &Forest{
		NFeaturesIn: 2,
		Classes:     []float64{0, 1},
		Trees: []Tree{
			stump([]float64{8, 2}, []float64{1, 3}),
			stump([]float64{1, 0}, []float64{0.5, 0.5}),
		},
	}
	require.NoError(t, f.Validate())
	assert.Equal(t, Classifier, f.Kind)

	proba, err := f.PredictProba([]float64{0.2, 9})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.9, 0.1}, proba, 1e-12)

	proba, err = f.PredictProba([]float64{0.5000001, 9})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.375, 0.625}, proba, 1e-12)

	label, err := f.Predict([]float64{0.9, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, label)

	_, err = f.PredictProba([]float64{1})
	assert.True(t, errors.Is(err, ErrDimension))
}

func TestForest_Regressor(t *testing.T) {
	f := &Forest{
		Kind:        Regressor,
		NFeaturesIn: 1,
		Trees: []Tree{
			stump([]float64{10}, []float64{20}),
			stump([]float64{30}, []float64{40}),
		},
	}
	require.NoError(t, f.Validate())

	got, err := f.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 30.0, got)

	_, err = f.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestForest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		forest Forest
	}{
		{name: "no trees", forest: Forest{NFeaturesIn: 1, Classes: []float64{0, 1}}},
		{name: "no features", forest: Forest{Classes: []float64{0, 1}, Trees: []Tree{stump([]float64{1, 0}, []float64{0, 1})}}},
		{name: "one class", forest: Forest{NFeaturesIn: 1, Classes: []float64{1}, Trees: []Tree{stump([]float64{1}, []float64{1})}}},
		{name: "leaf width", forest: Forest{NFeaturesIn: 1, Classes: []float64{0, 1}, Trees: []Tree{stump([]float64{1}, []float64{0, 1})}}},
		{name: "cycle", forest: Forest{NFeaturesIn: 1, Classes: []float64{0, 1}, Trees: []Tree{{Nodes: []Node{{Feature: 0, Left: 0, Right: 0}}}}}},
		{name: "feature out of range", forest: Forest{NFeaturesIn: 1, Classes: []float64{0, 1}, Trees: []Tree{{Nodes: []Node{
			{Feature: 3, Left: 1, Right: 2},
			{Left: leaf, Value: []float64{1, 0}},
			{Left: leaf, Value: []float64{0, 1}},
		}}}}},
		{name: "unknown kind", forest: Forest{Kind: "boosted", NFeaturesIn: 1, Trees: []Tree{stump([]float64{1}, []float64{1})}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.forest.Validate())
		})
	}
}
