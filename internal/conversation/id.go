package conversation

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
)

// NewID returns a fresh conversation ID: a 26-character ULID, unique and
// sortable by creation time.
func NewID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now()
	}
	id, err := ulid.New(ulid.Timestamp(now.UTC()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("conversation: generate id: %w", err)
	}
	return id.String(), nil
}

// MaxIDLength bounds caller-supplied conversation IDs.
const MaxIDLength = 128

// ErrInvalidID reports a caller-supplied ID that could not be addressed
// as a single URL path segment.
var ErrInvalidID = errors.New("conversation: invalid id")

// ValidateID checks a caller-supplied ID: at most MaxIDLength bytes, no
// slash, whitespace or control characters.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case len(id) > MaxIDLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidID, MaxIDLength)
	case strings.ContainsRune(id, '/'):
		return fmt.Errorf("%w: contains '/'", ErrInvalidID)
	case strings.IndexFunc(id, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0:
		return fmt.Errorf("%w: contains whitespace or control characters", ErrInvalidID)
	}
	return nil
}
