// Package config resolves runtime settings from flags, the config file and
// the environment through viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bgdnvk/diabrisk/internal/artifact"
	"github.com/bgdnvk/diabrisk/internal/logging"
	"github.com/bgdnvk/diabrisk/internal/model"
)

// EnvPrefix prefixes every environment variable the tool reads.
const EnvPrefix = "DIABRISK"

// DefaultArtifactTimeout bounds artifact fetching.
const DefaultArtifactTimeout = 30 * time.Second

// Settings is the effective configuration of one invocation.
type Settings struct {
	Debug bool `yaml:"debug"`

	Artifacts ArtifactSettings `yaml:"artifacts"`
	Encoding  EncodingSettings `yaml:"encoding"`
	Log       LogSettings      `yaml:"log"`
	AWS       AWSSettings      `yaml:"aws"`
	GCP       GCPSettings      `yaml:"gcp"`
}

type ArtifactSettings struct {
	Location string        `yaml:"location"`
	Timeout  time.Duration `yaml:"timeout"`
	Verify   bool          `yaml:"verify"`
}

type EncodingSettings struct {
	Unseen   string `yaml:"unseen"`
	CaseFold bool   `yaml:"case_fold"`
}

type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AWSSettings struct {
	Region          string `yaml:"region,omitempty"`
	Profile         string `yaml:"profile,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`
}

type GCPSettings struct {
	CredentialsFile string `yaml:"credentials_file,omitempty"`
}

// SetDefaults registers default values with viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("artifacts.timeout", DefaultArtifactTimeout)
	v.SetDefault("artifacts.verify", true)
	v.SetDefault("encoding.unseen", string(model.UnseenFallback))
	v.SetDefault("encoding.case_fold", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// Load reads the settings out of v.
func Load(v *viper.Viper) Settings {
	s := Settings{
		Debug: v.GetBool("debug"),
		Artifacts: ArtifactSettings{
			Location: strings.TrimSpace(v.GetString("artifacts.location")),
			Timeout:  v.GetDuration("artifacts.timeout"),
			Verify:   v.GetBool("artifacts.verify"),
		},
		Encoding: EncodingSettings{
			Unseen:   v.GetString("encoding.unseen"),
			CaseFold: v.GetBool("encoding.case_fold"),
		},
		Log: LogSettings{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		AWS: AWSSettings{
			Region:          v.GetString("aws.region"),
			Profile:         v.GetString("aws.profile"),
			AccessKeyID:     v.GetString("aws.access_key_id"),
			SecretAccessKey: v.GetString("aws.secret_access_key"),
			SessionToken:    v.GetString("aws.session_token"),
		},
		GCP: GCPSettings{
			CredentialsFile: v.GetString("gcp.credentials_file"),
		},
	}

	if s.Artifacts.Location == "" {
		s.Artifacts.Location = DefaultArtifactsLocation()
	}
	if s.Artifacts.Timeout <= 0 {
		s.Artifacts.Timeout = DefaultArtifactTimeout
	}
	if s.Debug {
		s.Log.Level = "debug"
	}
	return s
}

// DefaultArtifactsLocation is the directory holding the executable, falling
// back to the working directory when it cannot be determined.
func DefaultArtifactsLocation() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// EncodeOptions returns the encoder options, rejecting unknown policies.
func (s Settings) EncodeOptions() (model.EncodeOptions, error) {
	policy, err := model.ParseUnseenPolicy(s.Encoding.Unseen)
	if err != nil {
		return model.EncodeOptions{}, err
	}
	return model.EncodeOptions{Unseen: policy, CaseFold: s.Encoding.CaseFold}, nil
}

// SourceOptions returns the credentials for remote artifact sources.
func (s Settings) SourceOptions() artifact.SourceOptions {
	return artifact.SourceOptions{
		AWSRegion:          s.AWS.Region,
		AWSProfile:         s.AWS.Profile,
		AWSAccessKeyID:     s.AWS.AccessKeyID,
		AWSSecretAccessKey: s.AWS.SecretAccessKey,
		AWSSessionToken:    s.AWS.SessionToken,
		GCPCredentialsFile: s.GCP.CredentialsFile,
	}
}

// Logging returns the logger configuration.
func (s Settings) Logging() logging.Config {
	return logging.Config{Level: s.Log.Level, Format: s.Log.Format}
}

// Redacted returns a copy safe to print.
func (s Settings) Redacted() Settings {
	if s.AWS.SecretAccessKey != "" {
		s.AWS.SecretAccessKey = "********"
	}
	if s.AWS.SessionToken != "" {
		s.AWS.SessionToken = "********"
	}
	return s
}

// DefaultConfig is the document written by `diabrisk config init`.
const DefaultConfig = `# diabrisk configuration
# Copy this to ~/.diabrisk.yaml and customize for your setup.
# Every key can also be set through the environment, e.g.
# DIABRISK_ARTIFACTS_LOCATION=s3://models/diabetes/v3

artifacts:
  # Directory, file://, s3://bucket/prefix or gs://bucket/prefix.
  # Defaults to the directory holding the diabrisk binary.
  location: ""
  timeout: 30s
  # Check artifacts against manifest.yaml when it is present.
  verify: true

encoding:
  # What to do with categories never seen in training: fallback or error.
  unseen: fallback
  # Match categories case-insensitively ("female" -> "Female").
  case_fold: false

log:
  level: warn    # debug, info, warn, error
  format: text   # text or json

aws:
  region: ""
  profile: ""

gcp:
  credentials_file: ""
`
