// Package storage copies finished project trees to object storage.
package storage

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// Stats summarises one upload.
type Stats struct {
	Objects int   `json:"objects"`
	Bytes   int64 `json:"bytes"`
}

// Uploader copies the local tree dir to remote storage under projectKey.
type Uploader interface {
	Upload(ctx context.Context, projectKey, dir string) (Stats, error)
}

// object is one regular file of a tree and its key relative to the tree root.
type object struct {
	Local string
	Key   string
	Size  int64
}

// walkTree lists the regular files below dir in lexical order.
func walkTree(dir string) ([]object, error) {
	var objs []object
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		objs = append(objs, object{Local: p, Key: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	return objs, err
}

// joinKey builds an object key from non-empty parts without doubled slashes.
func joinKey(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return path.Join(clean...)
}
