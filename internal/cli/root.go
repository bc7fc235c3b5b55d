// Package cli implements the backlog-backup command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ALT-F4-LLC/backlog-backup/internal/config"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
	"github.com/ALT-F4-LLC/backlog-backup/internal/output"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type contextKey string

const (
	cfgKey    contextKey = "cfg"
	loggerKey contextKey = "logger"
)

// Command annotations.
const (
	// annScope selects the settings a command validates: local, remote or backup.
	annScope = "scope"
	// annSkipConfig skips configuration loading entirely.
	annSkipConfig = "skipConfig"
)

// CmdError wraps an error with a machine-readable error code for structured output.
type CmdError struct {
	Err  error
	Code output.ErrorCode
}

func (e *CmdError) Error() string { return e.Err.Error() }

func (e *CmdError) Unwrap() error { return e.Err }

func cmdErr(err error, code output.ErrorCode) *CmdError {
	return &CmdError{Err: err, Code: code}
}

// configErr classifies an error from loading or validating the configuration.
func configErr(err error) *CmdError {
	var ce *config.Error
	if errors.As(err, &ce) {
		return cmdErr(err, output.ErrValidation)
	}
	return cmdErr(err, output.ErrGeneral)
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"domain":                     "domain",
	"api-key":                    "api_key",
	"output":                     "output",
	"timeout":                    "timeout",
	"workers":                    "workers",
	"project":                    "project",
	"all-projects":               "all_projects",
	"include-all-space-projects": "include_all_space_projects",
	"archived-projects":          "archived_projects",
	"files-helper":               "files_helper",
	"files-interval":             "files_interval",
	"no-manifest":                "no_manifest",
	"vcs-username":               "vcs.username",
	"vcs-password":               "vcs.password",
	"s3-bucket":                  "s3.bucket",
	"s3-prefix":                  "s3.prefix",
	"s3-region":                  "s3.region",
	"s3-endpoint":                "s3.endpoint",
}

var rootCmd = &cobra.Command{
	Use:   "backlog-backup",
	Short: "Back up Backlog projects to a local directory",
	Long: `Back up issues, wiki pages, shared files and Git/SVN repositories of
Backlog projects into <output>/<project key>/. Re-running a backup updates
the existing tree: unchanged attachments are skipped and repositories are
fetched instead of cloned.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger := output.NewLogger(os.Stderr, logOptions(cmd))
		ctx := context.WithValue(cmd.Context(), loggerKey, logger)

		if _, ok := cmd.Annotations[annSkipConfig]; ok {
			cmd.SetContext(ctx)
			return nil
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return configErr(err)
		}
		if err := cfg.Validate(scopeOf(cmd)); err != nil {
			return configErr(err)
		}

		cmd.SetContext(context.WithValue(ctx, cfgKey, cfg))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("domain", "", "Backlog space domain, e.g. example.backlog.com (env BACKLOG_DOMAIN)")
	pf.String("api-key", "", "Backlog API key (env BACKLOG_API_KEY)")
	pf.StringP("output", "o", config.DefaultOutput, "Backup root directory")
	pf.Duration("timeout", config.DefaultTimeout, "Timeout of a single API request")
	pf.String("config", "", "Read settings from this YAML, TOML or JSON file")
	pf.BoolP("verbose", "v", false, "Log debug details")
	pf.Bool("json", false, "Output in JSON format")
	pf.BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

// loadConfig binds the command's flags into a fresh viper instance and
// resolves the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}
	if domains := domainFlags(cmd); len(domains) > 0 {
		v.Set("domains", domains)
	}

	path, _ := cmd.Flags().GetString("config")
	return config.Load(v, path)
}

// domainFlags returns the domains selected with --issues, --wiki, ... --all.
func domainFlags(cmd *cobra.Command) []string {
	var out []string
	for _, name := range append(domainNames(), "all") {
		if on, err := cmd.Flags().GetBool(name); err == nil && on {
			out = append(out, name)
		}
	}
	return out
}

func domainNames() []string {
	names := make([]string, len(model.AllDomains))
	for i, d := range model.AllDomains {
		names[i] = string(d)
	}
	return names
}

func scopeOf(cmd *cobra.Command) config.Scope {
	switch cmd.Annotations[annScope] {
	case "backup":
		return config.ScopeBackup
	case "remote":
		return config.ScopeRemote
	default:
		return config.ScopeLocal
	}
}

func logOptions(cmd *cobra.Command) output.LogOptions {
	jsonMode, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	verbose, _ := cmd.Flags().GetBool("verbose")
	return output.LogOptions{JSON: jsonMode, Quiet: quietMode, Verbose: verbose}
}

func getWriter(cmd *cobra.Command) *output.Writer {
	jsonMode, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	return output.New(jsonMode, quietMode)
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

func getLogger(cmd *cobra.Command) *slog.Logger {
	if l, ok := cmd.Context().Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		jsonMode, _ := rootCmd.PersistentFlags().GetBool("json")
		quietMode, _ := rootCmd.PersistentFlags().GetBool("quiet")
		w := output.New(jsonMode, quietMode)

		var ce *CmdError
		if errors.As(err, &ce) {
			return w.Error(ce.Err, ce.Code)
		}
		return w.Error(err, output.ErrGeneral)
	}
	return 0
}
