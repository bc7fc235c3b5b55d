package vcs

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Ref is a named reference of a git mirror.
type Ref struct {
	Name   string `json:"name"`
	Hash   string `json:"hash,omitempty"`
	Target string `json:"target,omitempty"`
}

// ReadRefs lists the references of the repository at dir, sorted by name.
// Symbolic references report their target instead of a hash.
func ReadRefs(dir string) ([]Ref, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dir, err)
	}
	iter, err := repo.References()
	if err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	defer iter.Close()

	var refs []Ref
	err = iter.ForEach(func(r *plumbing.Reference) error {
		ref := Ref{Name: r.Name().String()}
		if r.Type() == plumbing.SymbolicReference {
			ref.Target = r.Target().String()
		} else {
			ref.Hash = r.Hash().String()
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading references: %w", err)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}
