package cli

import (
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/backlog-backup/internal/backup"
	"github.com/ALT-F4-LLC/backlog-backup/internal/output"
	"github.com/ALT-F4-LLC/backlog-backup/internal/render"
)

var projectsCmd = &cobra.Command{
	Use:         "projects",
	Short:       "List the projects the API key can access",
	Annotations: map[string]string{annScope: "remote"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		log := getLogger(cmd)

		archived, err := cfg.ArchivedParam()
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		orch := backup.New(newClient(cfg, log), cfg.Output, nil, backup.WithLogger(log))
		projects, err := orch.ListProjects(cmd.Context(), cfg.SpaceWide, archived)
		if err != nil {
			return cmdErr(err, output.ErrRemote)
		}

		w.Success(projects, render.RenderProjects(projects))
		return nil
	},
}

func init() {
	f := projectsCmd.Flags()
	f.Bool("include-all-space-projects", false, "Include projects you have not joined (admin only)")
	f.String("archived-projects", "all", "Filter by archive status: all, archived-only or non-archived-only")
	rootCmd.AddCommand(projectsCmd)
}
