package persona

import (
	"errors"
	"fmt"
	"strings"
)

const maxUserKeyLen = 128

var ErrInvalidUserKey = errors.New("invalid user key")

// UserKey identifies a persona document; it is the address the proof was
// bound to and the document_id in the personas collection.
type UserKey string

func (k UserKey) String() string { return string(k) }

// ParseUserKey checks the document-id syntax: non-empty, at most 128 bytes,
// characters [A-Za-z0-9._:-]. Surrounding whitespace is trimmed.
func ParseUserKey(raw string) (UserKey, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: contextAddress is required", ErrInvalidUserKey)
	}
	if len(s) > maxUserKeyLen {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidUserKey, maxUserKeyLen)
	}
	for i := 0; i < len(s); i++ {
		if !validKeyByte(s[i]) {
			return "", fmt.Errorf("%w: invalid character %q at %d", ErrInvalidUserKey, s[i], i)
		}
	}
	return UserKey(s), nil
}

func validKeyByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '_', c == ':', c == '-':
		return true
	}
	return false
}
