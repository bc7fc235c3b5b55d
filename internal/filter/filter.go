// Package filter turns user selections into the domains and projects a run
// works on.
package filter

import (
	"fmt"
	"strings"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// ToStringSet converts a slice of strings to a set for O(1) membership checks.
func ToStringSet(ss []string) map[string]struct{} {
	if len(ss) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		set[s] = struct{}{}
	}
	return set
}

// ParseDomains validates domain names and returns them in backup order
// without duplicates. Names are case-insensitive, may be comma separated,
// and "all" selects every domain.
func ParseDomains(names []string) ([]model.Domain, error) {
	var split []string
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				split = append(split, part)
			}
		}
	}

	set := ToStringSet(split)
	if _, ok := set["all"]; ok {
		return append([]model.Domain(nil), model.AllDomains...), nil
	}
	for n := range set {
		if err := model.ValidateDomain(model.Domain(n)); err != nil {
			return nil, err
		}
	}

	var out []model.Domain
	for _, d := range model.AllDomains {
		if _, ok := set[string(d)]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// DomainStrings converts domains back to their names.
func DomainStrings(ds []model.Domain) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}

// ArchivedParam parses an archive filter name into the API's tri-state
// archived parameter. An empty name means no filtering.
func ArchivedParam(name string) (*bool, error) {
	if name == "" {
		return nil, nil
	}
	f := model.ArchiveFilter(name)
	if err := model.ValidateArchiveFilter(f); err != nil {
		return nil, err
	}
	return f.Archived(), nil
}

// MatchArchived reports whether p passes the archived filter.
func MatchArchived(p model.Project, archived *bool) bool {
	return archived == nil || p.Archived == *archived
}

// Projects keeps the projects that pass the archived filter and, when keys
// is non-empty, whose key is in keys. Keys are matched case-insensitively.
func Projects(projects []model.Project, keys []string, archived *bool) []model.Project {
	var want map[string]struct{}
	if len(keys) > 0 {
		upper := make([]string, len(keys))
		for i, k := range keys {
			upper[i] = strings.ToUpper(k)
		}
		want = ToStringSet(upper)
	}

	var out []model.Project
	for _, p := range projects {
		if !MatchArchived(p, archived) {
			continue
		}
		if want != nil {
			if _, ok := want[strings.ToUpper(p.ProjectKey)]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// ProjectKeys normalises project keys given on the command line: comma
// separated lists are split, keys are upper-cased and duplicates dropped.
func ProjectKeys(raw []string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range raw {
		for _, k := range strings.Split(r, ",") {
			k = strings.ToUpper(strings.TrimSpace(k))
			if k == "" {
				continue
			}
			if strings.ContainsAny(k, "/\\ ") {
				return nil, fmt.Errorf("invalid project key %q", k)
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out, nil
}
