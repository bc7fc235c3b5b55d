package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/backlog-backup/internal/backlog"
	"github.com/ALT-F4-LLC/backlog-backup/internal/backup"
	"github.com/ALT-F4-LLC/backlog-backup/internal/config"
	"github.com/ALT-F4-LLC/backlog-backup/internal/db"
	"github.com/ALT-F4-LLC/backlog-backup/internal/export"
	"github.com/ALT-F4-LLC/backlog-backup/internal/filter"
	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
	"github.com/ALT-F4-LLC/backlog-backup/internal/output"
	"github.com/ALT-F4-LLC/backlog-backup/internal/render"
	"github.com/ALT-F4-LLC/backlog-backup/internal/storage"
	"github.com/ALT-F4-LLC/backlog-backup/internal/vcs"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up one, several or all projects",
	Example: `  backlog-backup backup --domain example.backlog.com --project PRJ --all
  backlog-backup backup --all-projects --issues --wiki -o /srv/backlog`,
	Annotations: map[string]string{annScope: "backup"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		log := getLogger(cmd)

		keys, err := filter.ProjectKeys(cfg.Projects)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		domains, _ := cfg.DomainList()
		archived, _ := cfg.ArchivedParam()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := fsutil.EnsureDir(cfg.Output); err != nil {
			return cmdErr(fmt.Errorf("creating output directory: %w", err), output.ErrGeneral)
		}

		client := newClient(cfg, log)
		run, err := startRun(cfg, keys, domains)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		defer run.close()

		opts := export.Options{Logger: log, Workers: cfg.Workers, Ledger: run.ledger()}
		orchOpts := []backup.Option{backup.WithLogger(log)}
		if cfg.S3.Enabled() {
			up, err := storage.NewS3Uploader(ctx, storage.S3Config{
				Bucket:   cfg.S3.Bucket,
				Prefix:   cfg.S3.Prefix,
				Region:   cfg.S3.Region,
				Endpoint: cfg.S3.Endpoint,
				Workers:  cfg.Workers,
			}, log)
			if err != nil {
				run.finish(model.RunFailed, log)
				return cmdErr(err, output.ErrGeneral)
			}
			orchOpts = append(orchOpts, backup.WithUploader(up))
		}
		orch := backup.New(client, cfg.Output, buildExporters(cfg, domains, client, opts, log), orchOpts...)

		targets, err := orch.Resolve(ctx, backup.Selection{
			Keys:        keys,
			AllProjects: cfg.AllProjects,
			SpaceWide:   cfg.SpaceWide,
			Archived:    archived,
		})
		if err != nil {
			run.finish(model.RunFailed, log)
			return cmdErr(err, output.ErrRemote)
		}
		w.Info("Backing up %d project(s) to %s", len(targets), cfg.Output)

		rep, runErr := orch.Run(ctx, targets)
		rep.RunID = run.id
		status := rep.Status()
		if runErr != nil {
			status = model.RunFailed
		}
		run.finish(status, log)

		if w.JSONMode {
			w.Success(rep, "")
		} else {
			md, err := render.RenderReport(rep)
			if err != nil {
				log.Debug("markdown rendering failed", "err", err)
			}
			w.Success(rep, md)
		}

		if runErr != nil {
			if errors.Is(runErr, context.Canceled) {
				return cmdErr(fmt.Errorf("backup interrupted: %w", runErr), output.ErrCanceled)
			}
			return cmdErr(runErr, output.ErrGeneral)
		}
		if n := rep.Failures(); n > 0 {
			w.Warn("%d item(s) could not be backed up; see the report above", n)
		}
		return nil
	},
}

func init() {
	f := backupCmd.Flags()
	f.StringSliceP("project", "p", nil, "Project key to back up (repeatable or comma separated)")
	f.Bool("all-projects", false, "Back up every accessible project")
	f.Bool("include-all-space-projects", false, "With --all-projects, include projects you have not joined (admin only)")
	f.String("archived-projects", "", "With --all-projects: all, archived-only or non-archived-only")
	f.Bool("issues", false, "Back up issues, comments and issue attachments")
	f.Bool("wiki", false, "Back up wiki pages and their attachments")
	f.Bool("files", false, "Back up shared files")
	f.Bool("git", false, "Mirror Git repositories")
	f.Bool("svn", false, "Check out SVN repositories")
	f.Bool("all", false, "Back up every domain")
	f.Int("workers", config.DefaultWorkers, "Parallel downloads and repository syncs")
	f.String("files-helper", "", "External program listing and downloading shared files")
	f.Duration("files-interval", config.DefaultFilesInterval, "Minimum interval between files helper calls")
	f.String("vcs-username", "", "Username for Git/SVN (env BACKLOG_VCS_USERNAME)")
	f.String("vcs-password", "", "Password for Git/SVN (env BACKLOG_VCS_PASSWORD)")
	f.String("s3-bucket", "", "Upload each finished project to this S3 bucket")
	f.String("s3-prefix", "", "Key prefix inside the S3 bucket")
	f.String("s3-region", "", "AWS region of the S3 bucket")
	f.String("s3-endpoint", "", "Custom S3 endpoint URL, e.g. for MinIO")
	f.Bool("no-manifest", false, "Do not record the run and re-download every file")
	rootCmd.AddCommand(backupCmd)
}

func newClient(cfg *config.Config, log *slog.Logger) *backlog.Client {
	return backlog.New(cfg.Domain, cfg.APIKey,
		backlog.WithLogger(log),
		backlog.WithTimeout(cfg.Timeout),
		backlog.WithUserAgent("backlog-backup/"+version),
	)
}

// buildExporters returns one exporter per selected domain.
func buildExporters(cfg *config.Config, domains []model.Domain, client *backlog.Client, opts export.Options, log *slog.Logger) []export.Exporter {
	runner := &vcs.ExecRunner{Logger: log}
	mirror := vcs.NewMirror(runner, vcs.Credentials{Username: cfg.VCS.Username, Password: cfg.VCS.Password}, log)

	var exporters []export.Exporter
	for _, d := range domains {
		switch d {
		case model.DomainIssues:
			exporters = append(exporters, export.NewIssuesExporter(client, opts))
		case model.DomainWiki:
			exporters = append(exporters, export.NewWikiExporter(client, opts))
		case model.DomainFiles:
			var src export.FileSource = export.APIFileSource{API: client}
			if cfg.FilesHelper != "" {
				src = export.NewThrottledFileSource(export.CommandFileSource{Helper: cfg.FilesHelper, Runner: runner}, cfg.FilesInterval)
			}
			exporters = append(exporters, export.NewFilesExporter(src, opts))
		case model.DomainGit:
			exporters = append(exporters, export.NewGitExporter(client, mirror, opts))
		case model.DomainSVN:
			exporters = append(exporters, export.NewSVNExporter(client, mirror, opts))
		}
	}
	return exporters
}

// runRecord is the manifest entry of the current run. Without a manifest
// every method is a no-op.
type runRecord struct {
	id   string
	conn *sql.DB
}

func startRun(cfg *config.Config, keys []string, domains []model.Domain) (*runRecord, error) {
	run := &runRecord{id: uuid.NewString()}
	if cfg.NoManifest {
		return run, nil
	}

	conn, err := db.OpenManifest(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	projects := keys
	if cfg.AllProjects {
		projects = []string{"*"}
	}
	err = db.StartRun(conn, &model.Run{
		ID:        run.id,
		StartedAt: time.Now(),
		OutputDir: cfg.Output,
		Projects:  projects,
		Domains:   filter.DomainStrings(domains),
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	run.conn = conn
	return run, nil
}

func (r *runRecord) ledger() export.Ledger {
	if r.conn == nil {
		return export.NopLedger{}
	}
	return db.NewManifest(r.conn, r.id)
}

func (r *runRecord) finish(status model.RunStatus, log *slog.Logger) {
	if r.conn == nil {
		return
	}
	if err := db.FinishRun(r.conn, r.id, status, time.Now()); err != nil {
		log.Warn("could not record run result", "run", r.id, "err", err)
	}
}

func (r *runRecord) close() {
	if r.conn != nil {
		r.conn.Close()
	}
}
