package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/backlog-backup/internal/db"
	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
	"github.com/ALT-F4-LLC/backlog-backup/internal/output"
	"github.com/ALT-F4-LLC/backlog-backup/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "Show previous backup runs recorded in the output directory",
	Long: `Without arguments, list the most recent runs. With a run id (or a
unique prefix of one), show that run and the items it failed to back up.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annScope: "local"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		path := cfg.DBPath()
		if !fsutil.Exists(path) {
			if len(args) > 0 {
				return cmdErr(fmt.Errorf("no backup manifest in %s", cfg.Output), output.ErrNotFound)
			}
			w.Success([]model.Run{}, render.EmptyState("No backup runs recorded.", "Run one with: backlog-backup backup", w.QuietMode))
			return nil
		}

		conn, err := db.OpenManifest(path)
		if err != nil {
			return cmdErr(fmt.Errorf("opening manifest: %w", err), output.ErrGeneral)
		}
		defer conn.Close()

		if len(args) == 1 {
			run, err := db.FindRun(conn, args[0])
			if err != nil {
				if errors.Is(err, db.ErrRunNotFound) {
					return cmdErr(err, output.ErrNotFound)
				}
				if errors.Is(err, db.ErrAmbiguousRun) {
					return cmdErr(err, output.ErrValidation)
				}
				return cmdErr(err, output.ErrGeneral)
			}
			failed, err := db.ListItems(conn, run.ID, model.ItemFailed)
			if err != nil {
				return cmdErr(err, output.ErrGeneral)
			}
			w.Success(struct {
				Run    *model.Run         `json:"run"`
				Failed []model.ItemRecord `json:"failed"`
			}{run, failed}, render.RenderRunDetail(*run, failed))
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := db.ListRuns(conn, limit)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		w.Success(runs, render.RenderRuns(runs))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
