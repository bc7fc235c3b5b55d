package vcs

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
)

type svnInfo struct {
	Entries []struct {
		Revision string `xml:"revision,attr"`
		URL      string `xml:"url"`
	} `xml:"entry"`
}

// saveSVNInfo writes "svn info --xml" for the working copy in dir next to it
// and returns the working copy revision.
func (m *Mirror) saveSVNInfo(ctx context.Context, dir string) (string, error) {
	res, err := m.Runner.Run(ctx, Command{
		Name:    "svn",
		Args:    append([]string{"info", "--xml"}, m.svnAuthArgs()...),
		Dir:     dir,
		Timeout: svnInfoTimeout,
	})
	if err != nil {
		return "", err
	}
	if err := fsutil.WriteFile(dir+".info.xml", res.Stdout); err != nil {
		return "", err
	}
	return parseSVNRevision(res.Stdout)
}

func parseSVNRevision(data []byte) (string, error) {
	var info svnInfo
	if err := xml.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("parsing svn info: %w", err)
	}
	if len(info.Entries) == 0 || info.Entries[0].Revision == "" {
		return "", fmt.Errorf("svn info has no revision")
	}
	return info.Entries[0].Revision, nil
}
