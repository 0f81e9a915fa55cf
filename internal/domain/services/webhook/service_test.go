package webhook

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/security/crypto"
)

type fakeRepo struct {
	inserted map[string]bool
}

func newFakeRepo() *fakeRepo { return &fakeRepo{inserted: make(map[string]bool)} }

func (f *fakeRepo) InsertIfAbsent(_ context.Context, w *entities.ProcessedWebhook) (bool, error) {
	key := w.Provider + ":" + w.WebhookID
	if f.inserted[key] {
		return false, nil
	}
	f.inserted[key] = true
	return true, nil
}

func sign(secret string, ts int64, payload []byte) string {
	return crypto.HMACSign([]byte(fmt.Sprintf("%d.%s", ts, payload)), secret)
}

func TestProcess_AcceptsFirstDeliveryAndReportsSecondAsDuplicate(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, map[string]string{"stripe": "whsec_test"}, zap.NewNop())

	payload := []byte(`{"id":"evt_1","type":"payment.succeeded"}`)
	ts := time.Now().Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, sign("whsec_test", ts, payload))

	outcome, id, err := svc.Process(context.Background(), "stripe", payload, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, outcome)
	assert.Equal(t, "evt_1", id)

	outcome, id, err = svc.Process(context.Background(), "stripe", payload, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, "evt_1", id)
}

func TestProcess_RejectsBadSignature(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, map[string]string{"stripe": "whsec_test"}, zap.NewNop())

	payload := []byte(`{"id":"evt_2","type":"payment.succeeded"}`)
	ts := time.Now().Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, sign("wrong_secret", ts, payload))

	_, _, err := svc.Process(context.Background(), "stripe", payload, header)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindWebhookSignature))
}

func TestProcess_RejectsStaleTimestamp(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, map[string]string{"stripe": "whsec_test"}, zap.NewNop())

	payload := []byte(`{"id":"evt_3","type":"payment.succeeded"}`)
	ts := time.Now().Add(-1 * time.Hour).Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, sign("whsec_test", ts, payload))

	_, _, err := svc.Process(context.Background(), "stripe", payload, header)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindWebhookSignature))
}

func TestProcess_UnknownProviderIsValidationError(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, map[string]string{"stripe": "whsec_test"}, zap.NewNop())

	_, _, err := svc.Process(context.Background(), "unknown-provider", []byte(`{}`), "t=1,v1=x")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
}
