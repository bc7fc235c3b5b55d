// Package config resolves the settings of a run from flags, BACKLOG_*
// environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ALT-F4-LLC/backlog-backup/internal/db"
	"github.com/ALT-F4-LLC/backlog-backup/internal/filter"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// EnvPrefix prefixes every environment variable, e.g. BACKLOG_API_KEY.
const EnvPrefix = "BACKLOG"

// Defaults.
const (
	DefaultOutput        = "./backup"
	DefaultWorkers       = 4
	DefaultTimeout       = 60 * time.Second
	DefaultFilesInterval = time.Second
)

// Config holds the resolved settings. Keys are the mapstructure tags; flags
// use the same names with "-" and env vars upper-case them with "_".
type Config struct {
	Domain  string        `mapstructure:"domain" json:"domain" validate:"required,hostname_rfc1123"`
	APIKey  string        `mapstructure:"api_key" json:"api_key" validate:"required"`
	Output  string        `mapstructure:"output" json:"output" validate:"required"`
	Workers int           `mapstructure:"workers" json:"workers" validate:"min=1,max=64"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" validate:"min=1s"`

	Projects    []string `mapstructure:"project" json:"projects,omitempty"`
	AllProjects bool     `mapstructure:"all_projects" json:"all_projects"`
	SpaceWide   bool     `mapstructure:"include_all_space_projects" json:"include_all_space_projects"`
	Archived    string   `mapstructure:"archived_projects" json:"archived_projects" validate:"omitempty,oneof=all archived-only non-archived-only"`
	Domains     []string `mapstructure:"domains" json:"domains,omitempty"`

	FilesHelper   string        `mapstructure:"files_helper" json:"files_helper,omitempty"`
	FilesInterval time.Duration `mapstructure:"files_interval" json:"files_interval"`
	NoManifest    bool          `mapstructure:"no_manifest" json:"no_manifest"`

	VCS VCS `mapstructure:"vcs" json:"vcs"`
	S3  S3  `mapstructure:"s3" json:"s3"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `mapstructure:"-" json:"config_file,omitempty"`
}

// VCS holds the credentials handed to git and svn.
type VCS struct {
	Username string `mapstructure:"username" json:"username,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
}

// S3 selects the optional upload destination.
type S3 struct {
	Bucket   string `mapstructure:"bucket" json:"bucket,omitempty"`
	Prefix   string `mapstructure:"prefix" json:"prefix,omitempty"`
	Region   string `mapstructure:"region" json:"region,omitempty"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint,omitempty" validate:"omitempty,url"`
}

// Enabled reports whether uploads are configured.
func (s S3) Enabled() bool {
	return s.Bucket != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("domain", "")
	v.SetDefault("api_key", "")
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("project", []string{})
	v.SetDefault("all_projects", false)
	v.SetDefault("include_all_space_projects", false)
	v.SetDefault("archived_projects", "")
	v.SetDefault("domains", []string{})
	v.SetDefault("files_helper", "")
	v.SetDefault("files_interval", DefaultFilesInterval)
	v.SetDefault("no_manifest", false)
	v.SetDefault("vcs.username", "")
	v.SetDefault("vcs.password", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
}

// Load reads the settings from v. Flags must already be bound to v.
// configFile, when non-empty, must exist; it may be YAML, TOML or JSON.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &Error{Key: "config", Msg: fmt.Sprintf("config file %s does not exist", configFile)}
			}
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.Domain = normalizeDomain(cfg.Domain)
	cfg.Projects = splitList(cfg.Projects)
	cfg.Domains = splitList(cfg.Domains)
	if cfg.Output != "" {
		cfg.Output = filepath.Clean(cfg.Output)
	}
	return &cfg, nil
}

// normalizeDomain accepts a pasted space URL such as
// "https://example.backlog.com/" and keeps the host only.
func normalizeDomain(d string) string {
	d = strings.TrimSpace(d)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return strings.ToLower(d)
}

// splitList flattens comma separated entries, which is how list values
// arrive from environment variables.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// DomainList returns the selected domains in backup order.
func (c *Config) DomainList() ([]model.Domain, error) {
	return filter.ParseDomains(c.Domains)
}

// ArchivedParam returns the archive filter as the API's tri-state value.
func (c *Config) ArchivedParam() (*bool, error) {
	return filter.ArchivedParam(c.Archived)
}

// DBPath is the location of the backup manifest.
func (c *Config) DBPath() string {
	return filepath.Join(c.Output, db.FileName)
}

// Redacted returns a copy safe to print: secrets keep only their last four
// characters.
func (c *Config) Redacted() Config {
	out := *c
	out.APIKey = Mask(c.APIKey)
	out.VCS.Password = Mask(c.VCS.Password)
	return out
}

// Mask hides a secret. Short secrets are hidden entirely.
func Mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "********"
	default:
		return "********" + s[len(s)-4:]
	}
}
