package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_PendingReachesTerminalStates(t *testing.T) {
	assert.True(t, CanTransition(PaymentPending, PaymentCompleted))
	assert.True(t, CanTransition(PaymentPending, PaymentFailed))
	assert.True(t, CanTransition(PaymentPending, PaymentCancelled))
}

func TestCanTransition_CompletedOnlyReachesRefunded(t *testing.T) {
	assert.True(t, CanTransition(PaymentCompleted, PaymentRefunded))
	assert.False(t, CanTransition(PaymentCompleted, PaymentFailed))
	assert.False(t, CanTransition(PaymentCompleted, PaymentCancelled))
}

func TestCanTransition_TerminalStatesHaveNoOutboundEdges(t *testing.T) {
	for _, from := range []PaymentStatus{PaymentFailed, PaymentCancelled, PaymentRefunded} {
		for _, to := range []PaymentStatus{PaymentPending, PaymentCompleted, PaymentFailed, PaymentCancelled, PaymentRefunded} {
			assert.False(t, CanTransition(from, to), "expected no edge %s -> %s", from, to)
		}
	}
}

func TestRole_AtLeastRespectsHierarchy(t *testing.T) {
	assert.True(t, RoleOwner.AtLeast(RoleAdmin))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.False(t, RoleMember.AtLeast(RoleAdmin))
	assert.True(t, RoleViewer.AtLeast(RoleViewer))
}
