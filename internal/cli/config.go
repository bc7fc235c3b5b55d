package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/backlog-backup/internal/config"
	"github.com/ALT-F4-LLC/backlog-backup/internal/db"
	"github.com/ALT-F4-LLC/backlog-backup/internal/output"
	"github.com/ALT-F4-LLC/backlog-backup/internal/render"
	"github.com/spf13/cobra"
)

type configInfo struct {
	Config        config.Config `json:"config"`
	ManifestPath  string        `json:"manifest_path"`
	ManifestFound bool          `json:"manifest_found"`
	ManifestBytes int64         `json:"manifest_bytes"`
	SchemaVersion int           `json:"schema_version"`
}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Display the resolved configuration with secrets masked",
	Annotations: map[string]string{annScope: "local"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		info := configInfo{Config: cfg.Redacted(), ManifestPath: cfg.DBPath()}

		stat, err := os.Stat(info.ManifestPath)
		switch {
		case err == nil:
			info.ManifestFound = true
			info.ManifestBytes = stat.Size()
		case !os.IsNotExist(err):
			return cmdErr(fmt.Errorf("reading manifest file: %w", err), output.ErrGeneral)
		}

		if info.ManifestFound {
			conn, err := db.Open(info.ManifestPath)
			if err != nil {
				return cmdErr(fmt.Errorf("opening manifest: %w", err), output.ErrGeneral)
			}
			defer conn.Close()

			info.SchemaVersion, err = db.SchemaVersion(conn)
			if err != nil {
				return cmdErr(err, output.ErrGeneral)
			}
		}

		w.Success(info, formatConfigHuman(info))
		return nil
	},
}

func formatEnvValue(val string) string {
	if val == "" {
		return "(not set)"
	}
	return val
}

func configRows(info configInfo) [][2]string {
	c := info.Config
	manifest := info.ManifestPath + " (not found)"
	if info.ManifestFound {
		manifest = fmt.Sprintf("%s (%s, schema v%d)", info.ManifestPath, humanize.IBytes(uint64(info.ManifestBytes)), info.SchemaVersion)
	}
	s3 := "(disabled)"
	if c.S3.Enabled() {
		s3 = "s3://" + strings.TrimSuffix(c.S3.Bucket+"/"+strings.Trim(c.S3.Prefix, "/"), "/")
		if c.S3.Region != "" {
			s3 += " in " + c.S3.Region
		}
	}
	return [][2]string{
		{"Config file:", formatEnvValue(c.ConfigFile)},
		{"Domain:", formatEnvValue(c.Domain)},
		{"API key:", formatEnvValue(c.APIKey)},
		{"Output:", c.Output},
		{"Manifest:", manifest},
		{"Workers:", strconv.Itoa(c.Workers)},
		{"Timeout:", c.Timeout.String()},
		{"VCS user:", formatEnvValue(c.VCS.Username)},
		{"VCS password:", formatEnvValue(c.VCS.Password)},
		{"Files helper:", formatEnvValue(c.FilesHelper)},
		{"S3 upload:", s3},
	}
}

func formatConfigHuman(info configInfo) string {
	rows := configRows(info)
	if !render.ColorsEnabled() {
		var lines []string
		for _, r := range rows {
			lines = append(lines, fmt.Sprintf("%-15s %s", r[0], r[1]))
		}
		return strings.Join(lines, "\n")
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(render.ColorBright)
	keyStyle := lipgloss.NewStyle().Foreground(render.ColorDim)
	valStyle := lipgloss.NewStyle().Bold(true).Foreground(render.ColorBright)

	lines := headerStyle.Render("Backlog Backup Configuration") + "\n"
	for _, r := range rows {
		val := valStyle.Render(r[1])
		if r[0] == "Manifest:" {
			color := render.ColorFailed
			if info.ManifestFound {
				color = render.ColorOK
			}
			val = lipgloss.NewStyle().Foreground(color).Render("●") + " " + val
		}
		lines += fmt.Sprintf("\n  %s %s", keyStyle.Render(fmt.Sprintf("%-15s", r[0])), val)
	}
	return lines
}

func init() {
	rootCmd.AddCommand(configCmd)
}
