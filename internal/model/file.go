package model

import "strings"

// FileType distinguishes leaves from inner nodes of the shared file tree.
type FileType string

const (
	FileTypeFile      FileType = "file"
	FileTypeDirectory FileType = "directory"
)

// SharedFile is a node of a project's shared file tree, which is rooted at "/".
// Entries listed by the API carry ID, Dir and Name; entries produced by an
// external collaborator carry Name and a full RemotePath instead.
type SharedFile struct {
	ID         int      `json:"id,omitempty"`
	Type       FileType `json:"type"`
	Dir        string   `json:"dir,omitempty"`
	Name       string   `json:"name"`
	RemotePath string   `json:"path,omitempty"`
	Size       int64    `json:"size,omitempty"`
	Created    string   `json:"created,omitempty"`
	Updated    string   `json:"updated,omitempty"`
}

// IsDir reports whether the node is a directory.
func (f SharedFile) IsDir() bool {
	return f.Type == FileTypeDirectory
}

// Path returns the absolute remote path of the node.
func (f SharedFile) Path() string {
	if f.RemotePath != "" {
		return f.RemotePath
	}
	return JoinRemotePath(f.Dir, f.Name)
}

// JoinRemotePath appends name to the remote directory dir without doubling
// the separator at the root, so JoinRemotePath("/", "a") is "/a".
func JoinRemotePath(dir, name string) string {
	if dir == "" {
		dir = "/"
	}
	return strings.TrimSuffix(dir, "/") + "/" + strings.TrimPrefix(name, "/")
}
