// Package webhook implements the inbound webhook processor from
// SPEC_FULL.md §4.11: Stripe-style signature header parsing, a clock-skew
// replay defense, constant-time HMAC verification against multiple
// candidate signatures, and deduplication keyed on (webhook_id, provider)
// via a database-level ON CONFLICT DO NOTHING rather than a Redis nonce set
// — a zero-row insert is itself the duplicate signal, with no separate
// existence check that could race against the insert.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/security/crypto"
)

// DefaultClockSkewTolerance bounds how far a signature's embedded timestamp
// may drift from the server clock before it is rejected as a replay.
const DefaultClockSkewTolerance = 300 * time.Second

// Repository records processed webhooks. Implemented by
// internal/infrastructure/repositories against Store.
type Repository interface {
	InsertIfAbsent(ctx context.Context, w *entities.ProcessedWebhook) (inserted bool, err error)
}

// Handler dispatches a verified, deduplicated webhook event by type.
type Handler func(ctx context.Context, provider, eventType string, body []byte) error

type Service struct {
	repo            Repository
	secrets         map[string]string // provider -> signing secret
	clockSkew       time.Duration
	handlers        map[string]Handler
	logger          *zap.Logger
}

func NewService(repo Repository, secrets map[string]string, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		secrets:   secrets,
		clockSkew: DefaultClockSkewTolerance,
		handlers:  make(map[string]Handler),
		logger:    logger,
	}
}

// RegisterHandler binds a dispatch function to an event type. Step 6 of the
// protocol looks up by this registry; an unregistered type is accepted and
// deduplicated but not dispatched.
func (s *Service) RegisterHandler(eventType string, h Handler) {
	s.handlers[eventType] = h
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Outcome reports what Process did with the delivery.
type Outcome string

const (
	OutcomeAccepted  Outcome = "ACCEPTED"
	OutcomeDuplicate Outcome = "DUPLICATE"
)

// Process implements the six-step algorithm from spec §4.11 exactly:
// parse the "t=<unix>,v1=<hex>[,v1=<hex>]*" header, reject on clock skew,
// verify HMAC-SHA256("<t>."+payload) against every v1 candidate in constant
// time, parse the JSON body, deduplicate on (id, provider), and dispatch.
func (s *Service) Process(ctx context.Context, provider string, payload []byte, signatureHeader string) (Outcome, string, error) {
	secret, ok := s.secrets[provider]
	if !ok {
		return "", "", errs.New(errs.KindValidation, "unknown webhook provider")
	}

	ts, candidates, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return "", "", errs.Wrap(errs.KindWebhookSignature, "malformed signature header", err)
	}

	if math.Abs(time.Now().UTC().Sub(time.Unix(ts, 0).UTC()).Seconds()) > s.clockSkew.Seconds() {
		return "", "", errs.New(errs.KindWebhookSignature, "signature timestamp outside clock skew tolerance")
	}

	signedData := fmt.Sprintf("%d.%s", ts, payload)
	verified := false
	for _, candidate := range candidates {
		if crypto.HMACVerify([]byte(signedData), candidate, secret) {
			verified = true
			break
		}
	}
	if !verified {
		return "", "", errs.New(errs.KindWebhookSignature, "no signature candidate matched")
	}

	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", "", errs.Wrap(errs.KindValidation, "webhook body is not valid JSON", err)
	}
	if env.ID == "" || env.Type == "" {
		return "", "", errs.New(errs.KindValidation, "webhook body missing id or type")
	}

	record := &entities.ProcessedWebhook{
		WebhookID:      env.ID,
		Provider:       provider,
		EventType:      env.Type,
		Payload:        payload,
		Status:         "accepted",
		SignatureValid: true,
		ReceivedAt:     time.Now().UTC(),
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, record)
	if err != nil {
		return "", "", errs.Wrap(errs.KindInternal, "record webhook delivery", err)
	}
	if !inserted {
		return OutcomeDuplicate, env.ID, nil
	}

	if h, ok := s.handlers[env.Type]; ok {
		if err := h(ctx, provider, env.Type, payload); err != nil {
			s.logger.Error("webhook handler failed",
				zap.String("provider", provider),
				zap.String("event_type", env.Type),
				zap.String("webhook_id", env.ID),
				zap.Error(err),
			)
			return "", "", err
		}
	}

	return OutcomeAccepted, env.ID, nil
}

// parseSignatureHeader parses "t=<unix>,v1=<hex>,v1=<hex>,..." into the
// timestamp and the list of v1 signature candidates, in the order Stripe's
// own header format uses (multiple v1 pairs support secret rotation).
func parseSignatureHeader(header string) (int64, []string, error) {
	var ts int64
	var candidates []string
	var tsSet bool

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid timestamp %q: %w", kv[1], err)
			}
			ts = parsed
			tsSet = true
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}

	if !tsSet {
		return 0, nil, fmt.Errorf("missing t= field")
	}
	if len(candidates) == 0 {
		return 0, nil, fmt.Errorf("no v1= signature candidates present")
	}
	return ts, candidates, nil
}
