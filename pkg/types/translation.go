package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Translation is a memoized machine translation keyed by the hash of its
// source text and the language pair. Entries outlive recipes; an expired or
// missing entry only means the translation has to be computed again.
type Translation struct {
	ID             int64      `json:"id"`
	SourceTextHash string     `json:"source_text_hash"`
	SourceText     string     `json:"source_text"`
	TranslatedText string     `json:"translated_text"`
	SourceLang     string     `json:"source_lang"`
	TargetLang     string     `json:"target_lang"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// TranslationKey identifies a cache entry.
type TranslationKey struct {
	SourceTextHash string
	SourceLang     string
	TargetLang     string
}

// KeyFor builds the cache key for translating text between the languages.
func KeyFor(text, sourceLang, targetLang string) TranslationKey {
	return TranslationKey{
		SourceTextHash: HashText(text),
		SourceLang:     strings.TrimSpace(sourceLang),
		TargetLang:     strings.TrimSpace(targetLang),
	}
}

// HashText returns the hex SHA-256 of text, the content address used as
// source_text_hash.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Key returns the cache key of t.
func (t *Translation) Key() TranslationKey {
	return TranslationKey{SourceTextHash: t.SourceTextHash, SourceLang: t.SourceLang, TargetLang: t.TargetLang}
}

// Expired reports whether t has an expiry at or before now.
func (t *Translation) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// Validate checks required fields and fills or verifies SourceTextHash.
func (t *Translation) Validate() error {
	if t.SourceText == "" {
		return invalid("translation_cache", "source_text", "required")
	}
	if t.TranslatedText == "" {
		return invalid("translation_cache", "translated_text", "required")
	}
	t.SourceLang = strings.TrimSpace(t.SourceLang)
	if t.SourceLang == "" {
		return invalid("translation_cache", "source_lang", "required")
	}
	t.TargetLang = strings.TrimSpace(t.TargetLang)
	if t.TargetLang == "" {
		return invalid("translation_cache", "target_lang", "required")
	}
	hash := HashText(t.SourceText)
	if t.SourceTextHash == "" {
		t.SourceTextHash = hash
	} else if t.SourceTextHash != hash {
		return invalid("translation_cache", "source_text_hash", "does not match source_text")
	}
	return nil
}

// Validate checks that every component of the key is present.
func (k TranslationKey) Validate() error {
	if k.SourceTextHash == "" {
		return invalid("translation_cache", "source_text_hash", "required")
	}
	if k.SourceLang == "" {
		return invalid("translation_cache", "source_lang", "required")
	}
	if k.TargetLang == "" {
		return invalid("translation_cache", "target_lang", "required")
	}
	return nil
}
