package model

import "fmt"

// Domain is one kind of project data that can be backed up. Each domain
// is written under a directory of the same name in the project folder.
type Domain string

const (
	DomainIssues Domain = "issues"
	DomainWiki   Domain = "wiki"
	DomainFiles  Domain = "files"
	DomainGit    Domain = "git"
	DomainSVN    Domain = "svn"
)

// AllDomains lists every domain in the order a backup processes them.
var AllDomains = []Domain{DomainIssues, DomainWiki, DomainFiles, DomainGit, DomainSVN}

// ValidateDomain returns an error if d is not a recognized domain.
func ValidateDomain(d Domain) error {
	for _, v := range AllDomains {
		if d == v {
			return nil
		}
	}
	return fmt.Errorf("invalid domain %q: must be one of %v", d, AllDomains)
}
