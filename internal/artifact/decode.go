package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// extensions are probed in order when an artifact is requested by base name.
var extensions = []string{".json", ".yaml", ".yml"}

// maxArtifactSize bounds a single artifact read.
const maxArtifactSize = 256 << 20

// fetch reads the first existing variant of base. It returns the file name
// that was found.
func fetch(ctx context.Context, src Source, base string) (string, []byte, error) {
	for _, ext := range extensions {
		name := base + ext
		data, err := readAll(ctx, src, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return name, nil, err
		}
		return name, data, nil
	}
	return "", nil, fmt.Errorf("%s: no %s artifact (tried %s): %w",
		src.Location(), base, strings.Join(extensions, ", "), fs.ErrNotExist)
}

func readAll(ctx context.Context, src Source, name string) ([]byte, error) {
	r, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) > maxArtifactSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", name, maxArtifactSize)
	}
	return data, nil
}

// decode unmarshals data into v, choosing the format from the file extension.
// Unknown fields are rejected so a mismatched artifact fails loudly.
func decode(name string, data []byte, v any) error {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", name, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse %s: trailing data after artifact", name)
		}
	default:
		return fmt.Errorf("unsupported artifact format %q", name)
	}
	return nil
}
