package util

import (
	"regexp"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,80}$`)

// IsValidUsername checks a case-normalized username: lowercase letters,
// digits, underscore, dot, dash, 3-80 characters.
func IsValidUsername(s string) bool {
	return usernameRegex.MatchString(s)
}

