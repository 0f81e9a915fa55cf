package repositories

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAdvisoryLockKey_DeterministicForSamePair(t *testing.T) {
	userID := uuid.New()
	assert.Equal(t, advisoryLockKey(userID, "order-123"), advisoryLockKey(userID, "order-123"))
}

func TestAdvisoryLockKey_DiffersAcrossUsersWithSameKey(t *testing.T) {
	key := "order-123"
	a := advisoryLockKey(uuid.New(), key)
	b := advisoryLockKey(uuid.New(), key)
	assert.NotEqual(t, a, b)
}

func TestAdvisoryLockKey_DiffersAcrossKeysForSameUser(t *testing.T) {
	userID := uuid.New()
	assert.NotEqual(t, advisoryLockKey(userID, "order-123"), advisoryLockKey(userID, "order-456"))
}

// Two pairs that differ in both the user and the key hash differently. The
// UUID strings have a fixed length, so these pairs would not collide under
// plain concatenation either; the NUL separator is not what this checks.
func TestAdvisoryLockKey_DiffersWhenUserAndKeyBothChange(t *testing.T) {
	userA := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	userB := uuid.MustParse("11111111-1111-1111-1111-1111111111ab")
	assert.NotEqual(t, advisoryLockKey(userA, "1c"), advisoryLockKey(userB, "1"))
}
