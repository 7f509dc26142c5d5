// Package model holds the inference-time representations of the trained
// artifacts: label encoders, feature scalers and tree ensembles.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// ErrUnseenCategory is returned when a value is not among an encoder's known
// classes and the unseen policy is UnseenError.
var ErrUnseenCategory = errors.New("unseen category")

// UnseenPolicy decides what an encoder does with a category it never saw
// during training.
type UnseenPolicy string

const (
	// UnseenFallback substitutes the encoder's first known class.
	UnseenFallback UnseenPolicy = "fallback"
	// UnseenError fails the transform.
	UnseenError UnseenPolicy = "error"
)

// ParseUnseenPolicy converts a config value into an UnseenPolicy. An empty
// value selects UnseenFallback.
func ParseUnseenPolicy(value string) (UnseenPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(UnseenFallback):
		return UnseenFallback, nil
	case string(UnseenError), "fail":
		return UnseenError, nil
	default:
		return "", fmt.Errorf("unknown unseen-category policy %q (want fallback or error)", value)
	}
}

// EncodeOptions controls how a LabelEncoder matches incoming values.
type EncodeOptions struct {
	Unseen   UnseenPolicy
	CaseFold bool
}

// LabelEncoder maps the categories of one column to the integer codes fixed
// at training time. The code of a class is its index in Classes.
type LabelEncoder struct {
	Column  string
	Classes []string

	index  map[string]int
	folded map[string]int
}

// NewLabelEncoder builds an encoder for column from its ordered class list.
func NewLabelEncoder(column string, classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("encoder %q has no classes", column)
	}

	fold := cases.Fold()
	e := &LabelEncoder{
		Column:  column,
		Classes: append([]string(nil), classes...),
		index:   make(map[string]int, len(classes)),
		folded:  make(map[string]int, len(classes)),
	}
	for i, class := range e.Classes {
		if _, dup := e.index[class]; dup {
			return nil, fmt.Errorf("encoder %q lists class %q twice", column, class)
		}
		e.index[class] = i

		// first class wins when two classes fold to the same key
		key := fold.String(class)
		if _, ok := e.folded[key]; !ok {
			e.folded[key] = i
		}
	}
	return e, nil
}

// Fallback returns the class substituted for unseen values.
func (e *LabelEncoder) Fallback() string {
	return e.Classes[0]
}

// Known reports whether value is one of the encoder's classes.
func (e *LabelEncoder) Known(value string) bool {
	_, ok := e.index[value]
	return ok
}

// Transform returns the training-time code for value.
func (e *LabelEncoder) Transform(value string, opts EncodeOptions) (int, error) {
	if code, ok := e.index[value]; ok {
		return code, nil
	}
	if opts.CaseFold {
		if code, ok := e.folded[cases.Fold().String(value)]; ok {
			return code, nil
		}
	}

	if opts.Unseen == UnseenError {
		return 0, fmt.Errorf("%w: column %q has no class %q (known: %s)",
			ErrUnseenCategory, e.Column, value, strings.Join(e.Classes, ", "))
	}
	return e.index[e.Fallback()], nil
}

// Encoders is the set of per-column encoders saved alongside a model.
type Encoders map[string]*LabelEncoder

// NewEncoders builds encoders from a column → classes mapping.
func NewEncoders(raw map[string][]string) (Encoders, error) {
	encoders := make(Encoders, len(raw))
	for column, classes := range raw {
		enc, err := NewLabelEncoder(column, classes)
		if err != nil {
			return nil, err
		}
		encoders[column] = enc
	}
	return encoders, nil
}

// Columns returns the encoded column names in sorted order.
func (e Encoders) Columns() []string {
	columns := make([]string, 0, len(e))
	for column := range e {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}
