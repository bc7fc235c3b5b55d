package cli

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/backlog-backup/internal/render"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print backlog-backup version information",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annSkipConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		info := versionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		}

		bold := lipgloss.NewStyle().Bold(true).Foreground(render.ColorBright)
		dim := lipgloss.NewStyle().Foreground(render.ColorDim)
		detail := fmt.Sprintf("(commit: %s, built: %s, %s %s)", info.Commit, info.BuildDate, info.GoVersion, info.Platform)
		getWriter(cmd).Success(info, fmt.Sprintf("backlog-backup version %s %s",
			render.StyledText(info.Version, bold), render.StyledText(detail, dim)))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
