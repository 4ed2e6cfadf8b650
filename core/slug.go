package core

import (
	"fmt"
	"regexp"
	"strings"
)

// Resource ids (org, project, branch, element) share one format. They end
// up in URLs, so they are restricted to lowercase letters, digits, dashes
// and underscores.
var slugRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// Login names are slugs, except that they may also be email addresses.
var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_@.+-]{0,127}$`)

func CheckSlugOrEmail(name string) (string, error) {
	name = NormalizeSlug(name)
	if !nameRegexp.MatchString(name) {
		return "", fmt.Errorf("invalid username %q", name)
	}
	return name, nil
}

// CheckSlug normalizes the given slug and returns an error if it is not a
// valid resource id.
func CheckSlug(slug string) (string, error) {
	slug = NormalizeSlug(slug)
	if !slugRegexp.MatchString(slug) {
		return "", fmt.Errorf("invalid id %q", slug)
	}
	return slug, nil
}
