package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"patientledger/core/audit"
	"patientledger/core/auth"
	"patientledger/core/codec"
	"patientledger/core/errs"
	"patientledger/core/ledger"
	"patientledger/core/mirror"
	"patientledger/core/validation"
)

// engine holds the collaborators shared by both stores and the ledger
// state-transition helpers. It keeps no per-record state.
type engine struct {
	ledger    ledger.Client
	codec     *codec.Codec
	validator *validation.Validator
	guard     *auth.Guard
	mirror    mirror.Mirror
	audit     audit.Logger
	log       zerolog.Logger
	now       func() time.Time

	mirrorFailures atomic.Int64
}

// ledgerErr maps a ledger client error onto the store taxonomy. Anything
// unrecognised is an infrastructure failure, never a precondition.
func ledgerErr(op, key string, err error) error {
	switch {
	case errors.Is(err, ledger.ErrKeyExists):
		return errs.Wrap(errs.KindAlreadyExists, op, key, err)
	case errors.Is(err, ledger.ErrConflict):
		return errs.Wrap(errs.KindConflict, op, key, err)
	case errors.Is(err, ledger.ErrInvalidKey):
		return errs.Wrap(errs.KindInvalidArgument, op, key, err)
	case errors.Is(err, ledger.ErrNotFound):
		return errs.Wrap(errs.KindNotFound, op, key, err)
	default:
		return errs.Wrap(errs.KindLedgerUnavailable, op, key, err)
	}
}

// load returns the current value under key or NotFound.
func (e *engine) load(ctx context.Context, op, key string) ([]byte, error) {
	raw, found, err := e.ledger.Get(ctx, key)
	if err != nil {
		return nil, ledgerErr(op, key, err)
	}
	if !found {
		return nil, errs.New(errs.KindNotFound, op, key)
	}
	return raw, nil
}

// create writes value only if key is absent. The Get short-circuits the
// common duplicate case; PutIfAbsent is what enforces uniqueness.
func (e *engine) create(ctx context.Context, op, key string, value []byte) (ledger.Receipt, error) {
	_, found, err := e.ledger.Get(ctx, key)
	if err != nil {
		return ledger.Receipt{}, ledgerErr(op, key, err)
	}
	if found {
		return ledger.Receipt{}, errs.New(errs.KindAlreadyExists, op, key)
	}
	rcpt, err := e.ledger.PutIfAbsent(ctx, key, value)
	if err != nil {
		return ledger.Receipt{}, ledgerErr(op, key, err)
	}
	return rcpt, nil
}

// update re-reads key and swaps in rebuild(current) until the swap lands,
// the record disappears, or attempts run out.
func (e *engine) update(ctx context.Context, op, key string, rebuild func(current []byte) ([]byte, error)) (ledger.Receipt, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxUpdateAttempts; attempt++ {
		current, err := e.load(ctx, op, key)
		if err != nil {
			return ledger.Receipt{}, err
		}
		next, err := rebuild(current)
		if err != nil {
			return ledger.Receipt{}, err
		}
		rcpt, err := e.ledger.CompareAndSwap(ctx, key, current, next)
		if err == nil {
			return rcpt, nil
		}
		if !errors.Is(err, ledger.ErrConflict) {
			return ledger.Receipt{}, ledgerErr(op, key, err)
		}
		lastErr = err
		e.log.Debug().Str("op", op).Str("key", key).Int("attempt", attempt).Msg("concurrent update, retrying")
	}
	return ledger.Receipt{}, errs.Wrap(errs.KindConflict, op, key, lastErr)
}

// remove deletes key after confirming it exists. The ledger delete is itself
// conditional, so a delete that loses a race still reports NotFound.
func (e *engine) remove(ctx context.Context, op, key string) (ledger.Receipt, error) {
	if _, err := e.load(ctx, op, key); err != nil {
		return ledger.Receipt{}, err
	}
	rcpt, err := e.ledger.Delete(ctx, key)
	if err != nil {
		return ledger.Receipt{}, ledgerErr(op, key, err)
	}
	return rcpt, nil
}

// history lists the journal entries for key. An empty journal means the
// record never existed.
func (e *engine) history(ctx context.Context, op, key string) ([]ledger.Entry, error) {
	hr, ok := e.ledger.(ledger.HistoryReader)
	if !ok {
		return nil, errs.Newf(errs.KindLedgerUnavailable, op, key, "ledger keeps no journal")
	}
	entries, err := hr.History(ctx, key)
	if err != nil {
		return nil, ledgerErr(op, key, err)
	}
	if len(entries) == 0 {
		return nil, errs.New(errs.KindNotFound, op, key)
	}
	return entries, nil
}

// decodeEnvelope parses a stored record strictly. Envelopes that do not
// parse are corrupt, not missing.
func decodeEnvelope[T any](op, key string, raw []byte) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var zero T
		return zero, errs.Wrap(errs.KindCorruptPayload, op, key, err)
	}
	return v, nil
}

func (e *engine) timestamp() time.Time {
	return e.now().UTC()
}

// mirrorAfter runs a best-effort cache write after a ledger commit.
func (e *engine) mirrorAfter(op, key string, fn func() error) {
	if err := fn(); err != nil {
		e.mirrorFailures.Add(1)
		e.log.Warn().Err(err).Str("op", op).Str("key", key).Msg("cache mirror failed")
	}
}

// record emits one audit event; auditing never fails the operation.
func (e *engine) record(eventType, entityID string, actor auth.Identity, err error, meta map[string]string) {
	ev := audit.Event{
		Timestamp: e.timestamp(),
		EventType: eventType,
		EntityID:  entityID,
		Actor:     actor.Subject,
		Result:    audit.ResultSuccess,
		Metadata:  meta,
	}
	if err != nil {
		ev.Result = audit.ResultFailure
		ev.Reason = string(errs.KindOf(err))
	}
	e.audit.LogEvent(ev)
}

func receiptMeta(r ledger.Receipt) map[string]string {
	if r.TxID == "" {
		return nil
	}
	return map[string]string{"txId": r.TxID}
}
