package member

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"

	"github.com/worldrepublic/republic/internal/platform/errors"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 30
)

// usernamePattern allows lowercase alphanumerics with interior
// underscores and hyphens; the first and last character must be
// alphanumeric. Length is checked separately so the error can say which
// rule failed.
var usernamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]*[a-z0-9])?$`)

// reservedUsernames can never be claimed.
var reservedUsernames = map[string]struct{}{
	"admin":         {},
	"administrator": {},
	"system":        {},
	"support":       {},
	"help":          {},
	"api":           {},
	"www":           {},
	"mail":          {},
	"root":          {},
	"null":          {},
	"undefined":     {},
	"true":          {},
	"false":         {},
}

// NormalizeUsername lowercases and trims a candidate username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateUsername checks a normalized username against the naming rules.
func ValidateUsername(username string) error {
	if len(username) < usernameMinLength {
		return errors.New(errors.CodeInvalidUsername, "username must be at least 3 characters")
	}
	if len(username) > usernameMaxLength {
		return errors.New(errors.CodeInvalidUsername, "username must be at most 30 characters")
	}
	if !usernamePattern.MatchString(username) {
		return errors.New(errors.CodeInvalidUsername, "username may only contain letters, digits, underscores and hyphens, and cannot start or end with a separator")
	}
	if _, ok := reservedUsernames[username]; ok {
		return errors.New(errors.CodeInvalidUsername, "username is reserved")
	}
	return nil
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateUsername mints a citizen_ handle with an 8-character base36
// suffix. Uniqueness is not checked here; the insert's unique constraint
// is authoritative.
func generateUsername() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate username: %w", err)
	}
	suffix := make([]byte, len(buf))
	for i, b := range buf {
		suffix[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}
	return "citizen_" + string(suffix), nil
}
