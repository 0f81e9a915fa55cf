package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_DeterministicAndSixteenHexChars(t *testing.T) {
	a := Fingerprint("1.2.3.4", "curl/8.0", "")
	b := Fingerprint("1.2.3.4", "curl/8.0", "")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestFingerprint_DiffersOnAnyInputChange(t *testing.T) {
	base := Fingerprint("1.2.3.4", "curl/8.0", "")
	assert.NotEqual(t, base, Fingerprint("1.2.3.5", "curl/8.0", ""))
	assert.NotEqual(t, base, Fingerprint("1.2.3.4", "curl/9.0", ""))
	assert.NotEqual(t, base, Fingerprint("1.2.3.4", "curl/8.0", "fp-abc"))
}

func TestLocalFallback_AllowsThenDeniesPastBurst(t *testing.T) {
	limits := map[Category]Limit{CategoryUser: {Max: 120, Window: time.Minute}}
	f := newLocalFallback(limits)

	assert.True(t, f.allow(CategoryUser, "user-1"), "first request in a fresh bucket should be allowed")
	assert.False(t, f.allow(CategoryUser, "user-1"), "immediate second request should exceed the single-token burst")
}

func TestLocalFallback_TracksIdentifiersIndependently(t *testing.T) {
	limits := map[Category]Limit{CategoryUser: {Max: 120, Window: time.Minute}}
	f := newLocalFallback(limits)

	assert.True(t, f.allow(CategoryUser, "user-1"))
	assert.True(t, f.allow(CategoryUser, "user-2"), "a different identifier must not share user-1's bucket")
}

func TestDefaultLimits_MatchesModuleDefaults(t *testing.T) {
	limits := DefaultLimits()
	assert.Equal(t, int64(100), limits[CategoryIP].Max)
	assert.Equal(t, int64(50), limits[CategoryUser].Max)
	assert.Equal(t, int64(10), limits[CategoryLogin].Max)
	assert.Equal(t, int64(5), limits[CategoryPayment].Max)
}
