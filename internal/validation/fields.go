// Package validation holds field rules shared by the services and CLIs.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field limits for user-editable text.
const (
	MaxDisplayNameLen = 50
	MaxBioLen         = 500
	MaxTitleLen       = 300
	MaxDescriptionLen = 5000
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,64}$`)

// Usernames that collide with route segments.
var reservedUsernames = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"me":        {},
	"health":    {},
	"metrics":   {},
	"rankings":  {},
	"supports":  {},
	"dashboard": {},
	"ws":        {},
	"anonymous": {},
}

// ValidateUsername checks format and reserved names.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 3-64 characters of lowercase letters, numbers and underscores")
	}
	if _, exists := reservedUsernames[username]; exists {
		return fmt.Errorf("username is reserved")
	}
	return nil
}

// ValidateLength fails when s has more than max runes.
func ValidateLength(field, s string, max int) error {
	if utf8.RuneCountInString(s) > max {
		return fmt.Errorf("%s too long (max %d characters)", field, max)
	}
	return nil
}

// ValidateHTTPURL accepts absolute http and https URLs with a host.
func ValidateHTTPURL(field, raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be a valid URL", field)
	}
	return nil
}
