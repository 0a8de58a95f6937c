package errors

import (
	"strings"
	"unicode"
)

// Separator joins the names of a node's ancestors into its full name.
const Separator = "::"

// maxNameLength bounds a single name segment.
const maxNameLength = 256

// ValidateName validates a short object name.
//
// A name is valid iff it does not contain the separator "::". Names that
// address modules through the container are further restricted by
// [ValidateSegment].
func ValidateName(name string) error {
	if strings.Contains(name, Separator) {
		return New(ErrCodeInvalidName, "name %q contains the separator %q", name, Separator)
	}
	return nil
}

// ValidateSegment validates a name used as one segment of a full name.
//
// The validation rules are stricter than [ValidateName]:
//   - No empty names
//   - No ':' at all, so a joined path can be split unambiguously
//   - No control characters or whitespace
//   - Maximum length of 256 characters
func ValidateSegment(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "name cannot be empty")
	}
	if len(name) > maxNameLength {
		return New(ErrCodeInvalidName, "name too long (max %d characters)", maxNameLength)
	}
	if strings.ContainsRune(name, ':') {
		return New(ErrCodeInvalidName, "name %q cannot contain ':'", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidName, "name %q contains whitespace or control characters", name)
		}
	}
	return nil
}

// SplitFullName splits a full name such as "::inst::view" into its segments.
//
// The leading separator is optional. The empty string and "::" both denote the
// root and yield no segments. Every segment must pass [ValidateSegment].
func SplitFullName(path string) ([]string, error) {
	trimmed := strings.TrimPrefix(path, Separator)
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, Separator)
	for _, p := range parts {
		if err := ValidateSegment(p); err != nil {
			return nil, Wrap(ErrCodeInvalidPath, err, "invalid path %q", path)
		}
	}
	return parts, nil
}

// ValidateFullName validates a "::"-separated full name.
func ValidateFullName(path string) error {
	_, err := SplitFullName(path)
	return err
}

// JoinFullName builds the canonical full name for the given segments.
func JoinFullName(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(Separator)
		b.WriteString(s)
	}
	return b.String()
}

// ParentPath returns the full name of the parent of path and the last segment.
// For a single-segment path the parent is the root ("").
func ParentPath(path string) (parent, name string, err error) {
	parts, err := SplitFullName(path)
	if err != nil {
		return "", "", err
	}
	if len(parts) == 0 {
		return "", "", New(ErrCodeInvalidPath, "path %q names the root", path)
	}
	return JoinFullName(parts[:len(parts)-1]...), parts[len(parts)-1], nil
}
