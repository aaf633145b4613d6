// Package rules holds the pure decision functions for the post lifecycle.
// Nothing in this package performs I/O.
package rules

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/campuslife/apiserver/types"
)

// MaxCaptionLength is the cap applied to post captions.
const MaxCaptionLength = 250

// ValidationResult reports whether a create payload is acceptable.
type ValidationResult struct {
	OK    bool
	Error string
}

// NormalizeCaption trims the caption and truncates it to MaxCaptionLength
// characters. Over-length input is truncated, never rejected. The cut counts
// runes, not bytes, so multibyte captions are never split mid-character.
func NormalizeCaption(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if utf8.RuneCountInString(cleaned) > MaxCaptionLength {
		return string([]rune(cleaned)[:MaxCaptionLength])
	}
	return cleaned
}

// ValidateCreate checks the media fields of a create payload. The caption is
// never a creation blocker.
func ValidateCreate(mediaPublicID, mediaURL string) ValidationResult {
	if mediaPublicID == "" || mediaURL == "" {
		return ValidationResult{OK: false, Error: "media_public_id and media_url are required"}
	}
	return ValidationResult{OK: true}
}

// CanModify is the single authorization relation for update and delete:
// admins may modify anything, otherwise the principal must own the resource.
// Ids are compared as opaque strings so numeric and string ids from different
// transport boundaries never coerce past each other.
func CanModify(currentPrincipalID, resourceOwnerID, role string) bool {
	if role == types.RoleAdmin {
		return true
	}
	if currentPrincipalID == "" || resourceOwnerID == "" {
		return false
	}
	return currentPrincipalID == resourceOwnerID
}

// CoerceIDList converts raw persisted array entries into integer ids,
// silently dropping anything that does not parse. Legacy rows may carry
// non-numeric entries.
func CoerceIDList(values []string) []int {
	ids := make([]int, 0, len(values))
	for _, value := range values {
		id, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
