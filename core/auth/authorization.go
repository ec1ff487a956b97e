package auth

import (
	"time"

	"patientledger/core/audit"
	"patientledger/core/errs"
)

// Identity is a caller whose credentials were verified upstream.
type Identity struct {
	Subject string
}

// Guard decides whether a verified caller may act as the claimed actor.
// Now stamps audit events; nil means time.Now.
type Guard struct {
	AuditLogger audit.Logger
	Now         func() time.Time
}

func NewGuard(logger audit.Logger) *Guard {
	if logger == nil {
		logger = audit.Nop{}
	}
	return &Guard{AuditLogger: logger, Now: time.Now}
}

// Authorize succeeds only when the verified subject is non-empty and equals
// claimedActorID byte for byte.
func (g *Guard) Authorize(claimedActorID string, verified Identity) error {
	reason := ""
	switch {
	case verified.Subject == "":
		reason = "no verified identity"
	case verified.Subject != claimedActorID:
		reason = "actor mismatch"
	}

	result := audit.ResultSuccess
	if reason != "" {
		result = audit.ResultFailure
	}
	g.logger().LogEvent(audit.Event{
		Timestamp: g.now().UTC(),
		EventType: "Authorization",
		EntityID:  claimedActorID,
		Actor:     verified.Subject,
		Result:    result,
		Reason:    reason,
	})
	if reason != "" {
		return errs.Newf(errs.KindUnauthorized, "auth.authorize", claimedActorID, "%s", reason)
	}
	return nil
}

func (g *Guard) logger() audit.Logger {
	if g == nil || g.AuditLogger == nil {
		return audit.Nop{}
	}
	return g.AuditLogger
}

func (g *Guard) now() time.Time {
	if g == nil || g.Now == nil {
		return time.Now()
	}
	return g.Now()
}
