package validation

import (
	"time"

	"patientledger/core/audit"
	"patientledger/core/errs"
)

// reject records a validation failure (without PHI) and returns it as
// InvalidArgument.
func (v *Validator) reject(check, msg string) error {
	if v.AuditLogger != nil {
		v.AuditLogger.LogEvent(audit.Event{
			Timestamp: time.Now().UTC(),
			EventType: "ValidationFailure",
			EntityID:  check,
			Result:    audit.ResultFailure,
			Reason:    msg,
		})
	}
	return errs.Newf(errs.KindInvalidArgument, "validation."+check, "", "%s", msg)
}
