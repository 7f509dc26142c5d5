package artifact

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

// ManifestName is the optional integrity manifest stored with the artifacts.
const ManifestName = "manifest.yaml"

// DigestAlgorithm is the only digest the manifest supports.
const DigestAlgorithm = "blake2b-256"

// ErrDigestMismatch is returned when an artifact does not match its manifest
// entry.
var ErrDigestMismatch = errors.New("artifact digest mismatch")

// Manifest lists the expected digest of each artifact file.
type Manifest struct {
	Algorithm string            `yaml:"algorithm"`
	Files     map[string]string `yaml:"files"`
}

// Digest returns the hex blake2b-256 digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewManifest builds a manifest from file contents keyed by file name.
func NewManifest(files map[string][]byte) *Manifest {
	m := &Manifest{Algorithm: DigestAlgorithm, Files: make(map[string]string, len(files))}
	for name, data := range files {
		m.Files[name] = Digest(data)
	}
	return m
}

// Marshal renders the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// Names returns the listed file names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check verifies data against the entry for name. Files the manifest does
// not list pass unchecked.
func (m *Manifest) Check(name string, data []byte) error {
	want, ok := m.Files[name]
	if !ok {
		return nil
	}
	if got := Digest(data); !strings.EqualFold(got, want) {
		return fmt.Errorf("%w: %s has digest %s, manifest expects %s", ErrDigestMismatch, name, got, want)
	}
	return nil
}

// LoadManifest reads the manifest from src. It returns nil without error
// when the location has no manifest.
func LoadManifest(ctx context.Context, src Source) (*Manifest, error) {
	data, err := readAll(ctx, src, ManifestName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := decode(ManifestName, data, &m); err != nil {
		return nil, err
	}
	if m.Algorithm == "" {
		m.Algorithm = DigestAlgorithm
	}
	if m.Algorithm != DigestAlgorithm {
		return nil, fmt.Errorf("%s: unsupported digest algorithm %q", ManifestName, m.Algorithm)
	}
	return &m, nil
}

// FileStatus is the verification outcome for one manifest entry.
type FileStatus struct {
	Name     string
	Expected string
	Actual   string
	Err      error
}

// OK reports whether the file exists and matches.
func (s FileStatus) OK() bool {
	return s.Err == nil && strings.EqualFold(s.Expected, s.Actual)
}

// Verify recomputes the digest of every file the manifest lists.
func Verify(ctx context.Context, src Source, m *Manifest) []FileStatus {
	statuses := make([]FileStatus, 0, len(m.Files))
	for _, name := range m.Names() {
		status := FileStatus{Name: name, Expected: m.Files[name]}
		data, err := readAll(ctx, src, name)
		if err != nil {
			status.Err = err
		} else {
			status.Actual = Digest(data)
		}
		statuses = append(statuses, status)
	}
	return statuses
}
