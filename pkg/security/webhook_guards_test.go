package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookIPWhitelist_NoConfiguredListAllowsAnyIP(t *testing.T) {
	w := NewWebhookIPWhitelist(map[string][]string{}, zap.NewNop())
	require.NoError(t, w.ValidateIP("stripe", "203.0.113.9"))
}

func TestWebhookIPWhitelist_AllowsAddressInsideCIDR(t *testing.T) {
	w := NewWebhookIPWhitelist(map[string][]string{"stripe": {"203.0.113.0/24"}}, zap.NewNop())
	require.NoError(t, w.ValidateIP("stripe", "203.0.113.9"))
}

func TestWebhookIPWhitelist_RejectsAddressOutsideCIDR(t *testing.T) {
	w := NewWebhookIPWhitelist(map[string][]string{"stripe": {"203.0.113.0/24"}}, zap.NewNop())
	err := w.ValidateIP("stripe", "198.51.100.1")
	assert.Error(t, err)
}

func TestWebhookIPWhitelist_AllowsExactSingleIPEntry(t *testing.T) {
	w := NewWebhookIPWhitelist(map[string][]string{"stripe": {"198.51.100.1"}}, zap.NewNop())
	require.NoError(t, w.ValidateIP("stripe", "198.51.100.1"))
}

func TestWebhookIPWhitelist_RejectsMalformedClientIP(t *testing.T) {
	w := NewWebhookIPWhitelist(map[string][]string{"stripe": {"203.0.113.0/24"}}, zap.NewNop())
	err := w.ValidateIP("stripe", "not-an-ip")
	assert.Error(t, err)
}
