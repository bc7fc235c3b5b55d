package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is a configuration problem. It is detected before any network
// activity and makes the command exit with the validation exit code.
type Error struct {
	Key string
	Msg string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s %s (%s)", e.Key, e.Msg, sourceHint(e.Key))
}

// sourceHint names the flag and environment variable that set key.
func sourceHint(key string) string {
	flag := "--" + strings.NewReplacer("_", "-", ".", "-").Replace(key)
	env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	return fmt.Sprintf("flag %s or %s", flag, env)
}

// Scope selects which settings a command needs.
type Scope int

const (
	// ScopeLocal needs only the output directory.
	ScopeLocal Scope = iota
	// ScopeRemote needs the API credentials.
	ScopeRemote
	// ScopeBackup needs everything a backup run uses.
	ScopeBackup
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the settings needed by scope.
func (c *Config) Validate(scope Scope) error {
	var err error
	switch scope {
	case ScopeLocal:
		err = validate.StructPartial(c, "Output")
	case ScopeRemote:
		err = validate.StructPartial(c, "Domain", "APIKey", "Timeout")
	default:
		err = validate.Struct(c)
	}
	if err != nil {
		return fromValidator(err)
	}
	if scope == ScopeBackup {
		return c.validateBackup()
	}
	return nil
}

func (c *Config) validateBackup() error {
	switch {
	case len(c.Projects) == 0 && !c.AllProjects:
		return &Error{Msg: "no project selected: use --project KEY or --all-projects"}
	case len(c.Projects) > 0 && c.AllProjects:
		return &Error{Msg: "--project and --all-projects cannot be combined"}
	case len(c.Projects) > 0 && c.SpaceWide:
		return &Error{Msg: "--include-all-space-projects requires --all-projects"}
	}

	domains, err := c.DomainList()
	if err != nil {
		return &Error{Key: "domains", Msg: err.Error()}
	}
	if len(domains) == 0 {
		return &Error{Msg: "no domain selected: use --issues, --wiki, --files, --git, --svn or --all"}
	}

	if c.VCS.Password != "" && c.VCS.Username == "" {
		return &Error{Key: "vcs.username", Msg: "is required when a VCS password is set"}
	}
	if !c.S3.Enabled() && (c.S3.Prefix != "" || c.S3.Region != "" || c.S3.Endpoint != "") {
		return &Error{Key: "s3.bucket", Msg: "is required when other S3 settings are given"}
	}
	return nil
}

func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	return &Error{Key: key, Msg: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "hostname_rfc1123":
		return "must be a host name such as example.backlog.com"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "url":
		return "must be a URL"
	default:
		return fmt.Sprintf("is invalid (%s)", fe.Tag())
	}
}
