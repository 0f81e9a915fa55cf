// Package audit implements the tamper-evident, append-only audit log: every
// security-relevant event is HMAC-signed over its canonical JSON form before
// it is written, and optionally chained to the previous entry's signature so
// that deleting or reordering rows is detectable, not just editing one in
// place.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/security/crypto"
)

// Repository persists audit entries and serves the read paths used for
// integrity verification and compliance reporting. Implemented by
// internal/infrastructure/repositories against Store.
type Repository interface {
	Insert(ctx context.Context, tx *store.Tx, entry *entities.AuditEntry) error
	ListRange(ctx context.Context, start, end time.Time, limit int) ([]*entities.AuditEntry, error)
}

type contextKey string

const (
	ContextKeyIPAddress contextKey = "audit_ip_address"
	ContextKeyUserAgent contextKey = "audit_user_agent"
	ContextKeyRequestID contextKey = "audit_request_id"
)

// Service signs and writes audit entries, and verifies/reports over ranges
// already written. chainEnabled toggles the optional PrevSignature linking
// resolved in SPEC_FULL.md §13 Open Question 1 ("adopted").
type Service struct {
	repo          Repository
	secret        string
	logger        *zap.Logger
	chainEnabled  bool
	lastSignature string
	mu            sync.Mutex
}

// NewService constructs an audit Service. secret is the HMAC key; it must be
// the same key used by VerifyRange or every entry will report as tampered.
func NewService(repo Repository, secret string, logger *zap.Logger) *Service {
	return &Service{
		repo:         repo,
		secret:       secret,
		logger:       logger,
		chainEnabled: true,
	}
}

// DisableChaining turns off PrevSignature linking. Exposed for tests and for
// deployments that shard writers across processes, where a single
// in-memory lastSignature cannot be kept consistent.
func (s *Service) DisableChaining() { s.chainEnabled = false }

// Log signs and writes a single audit entry inside tx, so a failure to write
// the audit record aborts the caller's state change (I5: no state change
// commits without its audit trail). The caller supplies tx from the same
// transaction that performed the change being audited; pass a nil tx only
// for events with no associated state change (e.g. a rejected login).
func (s *Service) Log(ctx context.Context, tx *store.Tx, eventType entities.EventType, actorID *uuid.UUID, actorType entities.ActorType, resourceType string, resourceID *uuid.UUID, action string, details map[string]interface{}) error {
	entry := &entities.AuditEntry{
		ID:           uuid.New(),
		EventType:    eventType,
		ActorID:      actorID,
		ActorType:    actorType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		Details:      details,
		IPAddress:    stringFromContext(ctx, ContextKeyIPAddress),
		UserAgent:    stringFromContext(ctx, ContextKeyUserAgent),
		RequestID:    stringFromContext(ctx, ContextKeyRequestID),
		CreatedAt:    time.Now().UTC(),
	}

	if s.chainEnabled {
		entry.PrevSignature = s.getLastSignature()
	}

	payload, err := crypto.CanonicalJSON(entry.SignaturePayload())
	if err != nil {
		return errs.Wrap(errs.KindInternal, "canonicalize audit entry", err)
	}
	entry.HMACSignature = crypto.HMACSign(payload, s.secret)

	if err := s.repo.Insert(ctx, tx, entry); err != nil {
		s.logger.Error("audit write failed",
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
		return errs.Wrap(errs.KindInternal, "write audit entry", err)
	}

	if s.chainEnabled {
		s.setLastSignature(entry.HMACSignature)
	}

	return nil
}

func (s *Service) getLastSignature() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSignature
}

func (s *Service) setLastSignature(sig string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSignature = sig
}

// VerifyRange recomputes the HMAC of every entry between start and end and
// reports any whose stored signature no longer matches (tampered) or whose
// PrevSignature no longer matches its chain predecessor (broken link).
func (s *Service) VerifyRange(ctx context.Context, start, end time.Time) (*entities.IntegrityResult, error) {
	entries, err := s.repo.ListRange(ctx, start, end, 100000)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "list audit entries for verification", err)
	}

	result := &entities.IntegrityResult{
		PeriodStart:  start,
		PeriodEnd:    end,
		TotalEntries: int64(len(entries)),
		VerifiedAt:   time.Now().UTC(),
	}

	var prevSig string
	for _, e := range entries {
		payload, err := crypto.CanonicalJSON(e.SignaturePayload())
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, "canonicalize audit entry for verification", err)
		}
		if !crypto.HMACVerify(payload, e.HMACSignature, s.secret) {
			result.TamperedEntries = append(result.TamperedEntries, e.ID.String())
		}
		if s.chainEnabled && prevSig != "" && e.PrevSignature != "" && e.PrevSignature != prevSig {
			result.BrokenLinks = append(result.BrokenLinks, e.ID.String())
		}
		prevSig = e.HMACSignature
	}

	switch {
	case len(result.TamperedEntries) > 0:
		result.Status = "compromised"
	case len(result.BrokenLinks) > 0:
		result.Status = "chain_broken"
	default:
		result.Status = "verified"
	}

	s.logger.Info("audit integrity verification completed",
		zap.String("status", result.Status),
		zap.Int64("total_entries", result.TotalEntries),
		zap.Int("tampered", len(result.TamperedEntries)),
		zap.Int("broken_links", len(result.BrokenLinks)),
	)

	return result, nil
}

// ComplianceReport summarizes audit activity over [start, end] and folds in
// an integrity verification of the same range.
func (s *Service) ComplianceReport(ctx context.Context, reportType string, start, end time.Time) (*entities.ComplianceReport, error) {
	entries, err := s.repo.ListRange(ctx, start, end, 100000)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "list audit entries for report", err)
	}

	actors := make(map[string]bool)
	breakdown := make(map[string]int64)
	var securityEvents int64

	for _, e := range entries {
		if e.ActorID != nil {
			actors[e.ActorID.String()] = true
		}
		breakdown[string(e.EventType)]++
		if isSecurityEvent(e.EventType) {
			securityEvents++
		}
	}

	integrity, err := s.VerifyRange(ctx, start, end)
	if err != nil {
		s.logger.Warn("compliance report: integrity verification failed", zap.Error(err))
		integrity = &entities.IntegrityResult{Status: "unknown"}
	}

	report := &entities.ComplianceReport{
		ReportType:       reportType,
		PeriodStart:      start,
		PeriodEnd:        end,
		GeneratedAt:      time.Now().UTC(),
		TotalEvents:      int64(len(entries)),
		UniqueActors:     int64(len(actors)),
		EventBreakdown:   breakdown,
		SecurityEvents:   securityEvents,
		IntegrityStatus:  integrity.Status,
		TamperedEntryIDs: integrity.TamperedEntries,
	}
	return report, nil
}

func isSecurityEvent(t entities.EventType) bool {
	switch t {
	case entities.EventSessionRevoked, entities.EventSessionRejected,
		entities.EventRoleChanged, entities.EventTeamBoundary, entities.EventRoleDenied,
		entities.EventAccountLocked, entities.EventWebhookRejected:
		return true
	default:
		return false
	}
}

// WithAuditContext attaches request metadata that Log reads implicitly, so
// call sites deep in a service don't have to thread IP/UA/request-ID through
// every function signature.
func WithAuditContext(ctx context.Context, ipAddress, userAgent, requestID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyIPAddress, ipAddress)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	ctx = context.WithValue(ctx, ContextKeyRequestID, requestID)
	return ctx
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
