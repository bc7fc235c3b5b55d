package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
)

// Default timeouts for the mirroring commands.
const (
	DefaultGitTimeout         = 300 * time.Second
	DefaultSVNCheckoutTimeout = 600 * time.Second
	DefaultSVNUpdateTimeout   = 300 * time.Second
	svnInfoTimeout            = 60 * time.Second
)

// Environment variables the git credential helper reads.
const (
	envUsername = "BACKLOG_VCS_USERNAME"
	envPassword = "BACKLOG_VCS_PASSWORD"
)

// gitCredentialHelper answers git's "get" request from the child's
// environment, so credentials never appear in argv or on disk.
const gitCredentialHelper = `!f() { test "$1" = get || exit 0; echo "username=${` + envUsername + `}"; echo "password=${` + envPassword + `}"; }; f`

// Action is what a sync did to a mirror.
type Action string

const (
	ActionClone  Action = "clone"
	ActionUpdate Action = "update"
)

// Credentials authenticate against the space's git and svn servers.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether no credentials were supplied.
func (c Credentials) Empty() bool {
	return c.Username == "" && c.Password == ""
}

// Outcome describes a finished sync.
type Outcome struct {
	Action Action
	Dir    string
	// Revision is the svn working copy revision, when known.
	Revision string
}

// Mirror keeps local copies of remote repositories up to date.
type Mirror struct {
	Runner      Runner
	Logger      *slog.Logger
	Credentials Credentials

	GitTimeout         time.Duration
	SVNCheckoutTimeout time.Duration
	SVNUpdateTimeout   time.Duration
}

// NewMirror returns a Mirror with the default timeouts.
func NewMirror(r Runner, creds Credentials, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mirror{
		Runner:             r,
		Logger:             logger,
		Credentials:        creds,
		GitTimeout:         DefaultGitTimeout,
		SVNCheckoutTimeout: DefaultSVNCheckoutTimeout,
		SVNUpdateTimeout:   DefaultSVNUpdateTimeout,
	}
}

// SyncGit creates a bare mirror of url in dir, or fetches into it when dir
// already exists. After a successful sync the mirror's refs are recorded in
// "<dir>.refs.json"; failing to do so is only logged.
func (m *Mirror) SyncGit(ctx context.Context, url, dir string) (Outcome, error) {
	out := Outcome{Dir: dir}
	env := m.gitEnv()

	var cmd Command
	if fsutil.Exists(dir) {
		out.Action = ActionUpdate
		cmd = Command{Name: "git", Args: []string{"remote", "update", "--prune"}, Dir: dir}
	} else {
		out.Action = ActionClone
		if err := fsutil.EnsureDir(filepath.Dir(dir)); err != nil {
			return out, err
		}
		cmd = Command{Name: "git", Args: []string{"clone", "--mirror", "--", url, dir}}
	}
	cmd.Env = env
	cmd.Timeout = m.GitTimeout

	m.Logger.Info("syncing git repository", "action", out.Action, "dir", dir)
	if _, err := m.Runner.Run(ctx, cmd); err != nil {
		return out, fmt.Errorf("git %s %s: %w", out.Action, filepath.Base(dir), err)
	}

	refs, err := ReadRefs(dir)
	if err != nil {
		m.Logger.Warn("could not read git refs", "dir", dir, "err", err)
		return out, nil
	}
	if err := fsutil.WriteJSON(dir+".refs.json", refs); err != nil {
		m.Logger.Warn("could not write git refs", "dir", dir, "err", err)
	}
	return out, nil
}

// SyncSVN checks out url into dir, or updates the working copy when dir
// already exists. Afterwards "svn info --xml" is saved to "<dir>.info.xml";
// failing to do so is only logged.
func (m *Mirror) SyncSVN(ctx context.Context, url, dir string) (Outcome, error) {
	out := Outcome{Dir: dir}

	var cmd Command
	if fsutil.Exists(dir) {
		out.Action = ActionUpdate
		cmd = Command{Name: "svn", Args: append([]string{"update"}, m.svnAuthArgs()...), Dir: dir, Timeout: m.SVNUpdateTimeout}
	} else {
		out.Action = ActionClone
		if err := fsutil.EnsureDir(filepath.Dir(dir)); err != nil {
			return out, err
		}
		args := append([]string{"checkout"}, m.svnAuthArgs()...)
		args = append(args, "--", url, dir)
		cmd = Command{Name: "svn", Args: args, Timeout: m.SVNCheckoutTimeout}
	}

	m.Logger.Info("syncing svn repository", "action", out.Action, "dir", dir)
	if _, err := m.Runner.Run(ctx, cmd); err != nil {
		return out, fmt.Errorf("svn %s %s: %w", svnVerb(out.Action), filepath.Base(dir), err)
	}

	rev, err := m.saveSVNInfo(ctx, dir)
	if err != nil {
		m.Logger.Warn("could not record svn info", "dir", dir, "err", err)
		return out, nil
	}
	out.Revision = rev
	m.Logger.Info("svn working copy revision", "dir", dir, "revision", rev)
	return out, nil
}

func (m *Mirror) gitEnv() []string {
	env := []string{"GIT_TERMINAL_PROMPT=0"}
	if m.Credentials.Empty() {
		return env
	}
	return append(env,
		envUsername+"="+m.Credentials.Username,
		envPassword+"="+m.Credentials.Password,
		"GIT_CONFIG_COUNT=2",
		"GIT_CONFIG_KEY_0=credential.helper",
		"GIT_CONFIG_VALUE_0=",
		"GIT_CONFIG_KEY_1=credential.helper",
		"GIT_CONFIG_VALUE_1="+gitCredentialHelper,
	)
}

func (m *Mirror) svnAuthArgs() []string {
	args := []string{
		"--non-interactive",
		"--no-auth-cache",
		"--trust-server-cert-failures=unknown-ca,cn-mismatch,expired,not-yet-valid,other",
	}
	if m.Credentials.Username != "" {
		args = append(args, "--username", m.Credentials.Username)
	}
	if m.Credentials.Password != "" {
		args = append(args, "--password", m.Credentials.Password)
	}
	return args
}

func svnVerb(a Action) string {
	if a == ActionClone {
		return "checkout"
	}
	return "update"
}
