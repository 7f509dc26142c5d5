// Package inference turns one JSON record into one JSON result: it validates
// the request, rebuilds the training-time feature vector, runs the model and
// renders the response envelope.
package inference

import (
	"errors"
	"fmt"
	"strings"
)

// Failure classes. Stage errors wrap one of these so callers can tell where
// an invocation stopped.
var (
	ErrArtifactLoad = errors.New("failed to load model artifacts")
	ErrInputFormat  = errors.New("invalid input")
	ErrValidation   = errors.New("invalid record")
	ErrTransform    = errors.New("feature transform failed")
	ErrPrediction   = errors.New("prediction failed")
)

// MissingFieldsError lists the required fields absent from a record, in
// required order.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("Missing required fields: [%s]", strings.Join(e.Fields, ", "))
}

// Is makes a MissingFieldsError match ErrValidation.
func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrValidation
}
