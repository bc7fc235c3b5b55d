package model

import (
	"strconv"

	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
)

// RepoKind is the version-control system backing a repository.
type RepoKind string

const (
	RepoGit RepoKind = "git"
	RepoSVN RepoKind = "svn"
)

// Repository is a Git or Subversion repository belonging to a project.
type Repository struct {
	ID          int    `json:"id"`
	ProjectID   int    `json:"projectId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	HTTPURL     string `json:"httpUrl"`
}

// MirrorDirName returns the directory name of the repository's local
// mirror: "<name>.git" for git, "<name>" for svn. The name is sanitised.
func (r Repository) MirrorDirName(kind RepoKind) string {
	name := fsutil.SanitizeFilenameOr(r.Name, "repo_"+strconv.Itoa(r.ID))
	if kind == RepoGit {
		return name + ".git"
	}
	return name
}
