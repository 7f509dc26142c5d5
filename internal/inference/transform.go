package inference

import (
	"fmt"
	"sort"

	"github.com/bgdnvk/diabrisk/internal/model"
)

// CategoryEncoder maps a category to its training-time integer code.
type CategoryEncoder interface {
	Transform(value string, opts model.EncodeOptions) (int, error)
}

// FeatureScaler scales one feature vector. Features returns the fitted column
// order, or nil when the artifact does not record it.
type FeatureScaler interface {
	Features() []string
	Transform(x []float64) ([]float64, error)
}

// Transformer rebuilds the scaled feature vector a model was trained on.
type Transformer struct {
	Encoders map[string]CategoryEncoder
	Scaler   FeatureScaler
	// Columns is the record schema. It is also the vector order when the
	// scaler does not carry feature names.
	Columns []string
	Options model.EncodeOptions
}

// Transform encodes, orders, casts and scales rec.
func (t *Transformer) Transform(rec Record) ([]float64, error) {
	row := make(map[string]any, len(t.Columns))
	for _, column := range t.Columns {
		if v, ok := rec[column]; ok {
			row[column] = v
		}
	}

	for _, column := range t.encodedColumns() {
		v, ok := row[column]
		if !ok {
			continue
		}
		code, err := t.Encoders[column].Transform(toCategory(v), t.Options)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransform, err)
		}
		row[column] = float64(code)
	}

	order := t.Columns
	if t.Scaler != nil {
		if names := t.Scaler.Features(); len(names) > 0 {
			order = names
		}
	}

	x := make([]float64, len(order))
	for i, column := range order {
		v, ok := row[column]
		if !ok {
			return nil, fmt.Errorf("%w: column %q expected by the scaler is not in the record", ErrTransform, column)
		}
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %w", ErrTransform, column, err)
		}
		x[i] = f
	}

	if t.Scaler == nil {
		return x, nil
	}
	scaled, err := t.Scaler.Transform(x)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransform, err)
	}
	return scaled, nil
}

func (t *Transformer) encodedColumns() []string {
	columns := make([]string, 0, len(t.Encoders))
	for column := range t.Encoders {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}
