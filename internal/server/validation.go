package server

import (
	"fmt"
	"regexp"
	"strings"

	"taskmatch/internal/normalize"
)

var (
	ownerRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	repoRegex  = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

// validateProjectID accepts "owner/name" as GitHub spells it, or the
// fallback id used for payloads without a repository.
func validateProjectID(id string) bool {
	if id == normalize.DefaultProjectID {
		return true
	}
	owner, repo, ok := strings.Cut(id, "/")
	if !ok {
		return false
	}
	if repo == "." || repo == ".." {
		return false
	}
	return ownerRegex.MatchString(owner) && repoRegex.MatchString(repo)
}

func requireProjectID(id string) (string, error) {
	if id == "" {
		return "", badRequestCode(fmt.Errorf("project is required"), ErrCodeMissingRequired)
	}
	if !validateProjectID(id) {
		return "", badRequestCode(fmt.Errorf("invalid project %q: expected owner/name", id), ErrCodeInvalidProject)
	}
	return id, nil
}
