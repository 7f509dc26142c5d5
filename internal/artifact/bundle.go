package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bgdnvk/diabrisk/internal/model"
)

// Base names of the artifacts, without extension.
const (
	RiskModelName       = "rfmodelfinal"
	ScalerName          = "scaler"
	EncodersName        = "label_encoders"
	DiagnosticModelName = "diagnostic_model"
)

// RiskCategoricalColumns are the risk inputs that reach the model through a
// label encoder.
var RiskCategoricalColumns = []string{"gender", "smoking_history"}

// RiskBundle holds everything the risk command needs. It is read-only after
// loading.
type RiskBundle struct {
	Model    *model.Forest
	Scaler   *model.Scaler
	Encoders model.Encoders
	// Files maps each artifact to the file name it was loaded from.
	Files map[string]string
}

// DiagnosticBundle holds the model used by the diagnose command.
type DiagnosticBundle struct {
	Model *model.Forest
	Files map[string]string
}

// Loader fetches artifacts from a Source, checking them against the
// manifest when one is present.
type Loader struct {
	src    Source
	verify bool
	logger *slog.Logger

	manifest       *Manifest
	manifestLoaded bool
}

// NewLoader creates a loader. With verify set, artifacts listed in the
// manifest must match their digests.
func NewLoader(src Source, verify bool, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{src: src, verify: verify, logger: logger}
}

// LoadRisk loads the classifier, scaler and label encoders.
func (l *Loader) LoadRisk(ctx context.Context) (*RiskBundle, error) {
	bundle := &RiskBundle{Files: make(map[string]string, 3)}

	var forest model.Forest
	name, err := l.load(ctx, RiskModelName, &forest)
	if err != nil {
		return nil, err
	}
	if err := forest.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if forest.Kind != model.Classifier {
		return nil, fmt.Errorf("%s: risk model must be a classifier, got %s", name, forest.Kind)
	}
	bundle.Model = &forest
	bundle.Files[RiskModelName] = name

	var scaler model.Scaler
	name, err = l.load(ctx, ScalerName, &scaler)
	if err != nil {
		return nil, err
	}
	if err := scaler.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if scaler.Width() != forest.Width() {
		return nil, fmt.Errorf("%s: scaler has %d features but model expects %d", name, scaler.Width(), forest.Width())
	}
	bundle.Scaler = &scaler
	bundle.Files[ScalerName] = name

	var raw map[string][]string
	name, err = l.load(ctx, EncodersName, &raw)
	if err != nil {
		return nil, err
	}
	encoders, err := model.NewEncoders(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := checkEncoders(encoders, &scaler); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	bundle.Encoders = encoders
	bundle.Files[EncodersName] = name

	l.logger.Debug("loaded risk artifacts",
		"location", l.src.Location(),
		"trees", len(forest.Trees),
		"features", scaler.Width(),
		"encoders", encoders.Columns())
	return bundle, nil
}

// LoadDiagnostic loads the point-prediction model.
func (l *Loader) LoadDiagnostic(ctx context.Context) (*DiagnosticBundle, error) {
	var forest model.Forest
	name, err := l.load(ctx, DiagnosticModelName, &forest)
	if err != nil {
		return nil, err
	}
	if err := forest.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	l.logger.Debug("loaded diagnostic artifacts",
		"location", l.src.Location(),
		"kind", forest.Kind,
		"trees", len(forest.Trees))
	return &DiagnosticBundle{
		Model: &forest,
		Files: map[string]string{DiagnosticModelName: name},
	}, nil
}

// checkEncoders requires an encoder for every categorical column the scaler
// takes as input. A scaler without feature names takes all of them.
func checkEncoders(encoders model.Encoders, scaler *model.Scaler) error {
	if len(encoders) == 0 {
		return errors.New("no label encoders")
	}

	inputs := make(map[string]bool, scaler.Width())
	for _, name := range scaler.Features() {
		inputs[name] = true
	}
	var missing []string
	for _, column := range RiskCategoricalColumns {
		if len(inputs) > 0 && !inputs[column] {
			continue
		}
		if _, ok := encoders[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no label encoder for categorical column(s) %s", strings.Join(missing, ", "))
	}
	return nil
}

func (l *Loader) load(ctx context.Context, base string, v any) (string, error) {
	name, data, err := fetch(ctx, l.src, base)
	if err != nil {
		return name, err
	}

	if l.verify {
		m, err := l.loadManifest(ctx)
		if err != nil {
			return name, err
		}
		if m != nil {
			if err := m.Check(name, data); err != nil {
				return name, err
			}
		}
	}

	if err := decode(name, data, v); err != nil {
		return name, err
	}
	return name, nil
}

func (l *Loader) loadManifest(ctx context.Context) (*Manifest, error) {
	if l.manifestLoaded {
		return l.manifest, nil
	}
	m, err := LoadManifest(ctx, l.src)
	if err != nil {
		return nil, err
	}
	l.manifest = m
	l.manifestLoaded = true
	if m == nil {
		l.logger.Debug("no artifact manifest, skipping digest checks", "location", l.src.Location())
	}
	return m, nil
}
