package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// keyWidth is the number of hex characters kept from the content hash.
// 64 bits of hash keeps collision probability negligible for cache
// populations in the low millions while bounding key storage cost.
const keyWidth = 16

// KeyCodec derives stable cache keys from source text.
type KeyCodec struct {
	normalizer TextNormalizer
}

// NewKeyCodec creates a codec using the given normalizer, or the
// default normalizer when nil.
func NewKeyCodec(normalizer TextNormalizer) *KeyCodec {
	if normalizer == nil {
		normalizer = NewTextNormalizer()
	}
	return &KeyCodec{normalizer: normalizer}
}

// DeriveKey returns the fixed-width cache key for the text. Equal texts
// after normalization always yield equal keys. Never fails, including
// on the empty string.
func (k *KeyCodec) DeriveKey(sourceText string) CacheKey {
	key, _ := k.deriveBoth(sourceText)
	return key
}

// Normalize exposes the codec's normalization for callers that need the
// canonical text itself.
func (k *KeyCodec) Normalize(sourceText string) string {
	return k.normalizer.Normalize(sourceText)
}

// deriveBoth returns the truncated key and the full content hash.
func (k *KeyCodec) deriveBoth(sourceText string) (CacheKey, string) {
	sum := sha256.Sum256([]byte(k.normalizer.Normalize(sourceText)))
	full := hex.EncodeToString(sum[:])
	return CacheKey(full[:keyWidth]), full
}
