package grpcledger

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"patientledger/core/ledger"
)

// Struct field names. Byte fields travel as standard base64 strings and
// sequence numbers as decimal strings, since Struct numbers are float64.
const (
	fKey         = "key"
	fValue       = "value"
	fExpected    = "expected"
	fFound       = "found"
	fTxID        = "txId"
	fSeq         = "seq"
	fOp          = "op"
	fCommittedAt = "committedAt"
	fValueCID    = "valueCid"
	fPrevHash    = "prevHash"
	fEntryHash   = "entryHash"
	fEntries     = "entries"
)

func str(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func bytesField(s *structpb.Struct, name string) ([]byte, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(v.GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return b, nil
}

func newRequest(key string, value, expected []byte) *structpb.Struct {
	fields := map[string]*structpb.Value{fKey: structpb.NewStringValue(key)}
	if value != nil {
		fields[fValue] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(value))
	}
	if expected != nil {
		fields[fExpected] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(expected))
	}
	return &structpb.Struct{Fields: fields}
}

func encodeGet(value []byte, found bool) *structpb.Struct {
	fields := map[string]*structpb.Value{fFound: structpb.NewBoolValue(found)}
	if found {
		fields[fValue] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(value))
	}
	return &structpb.Struct{Fields: fields}
}

func encodeReceipt(r ledger.Receipt) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fTxID:        structpb.NewStringValue(r.TxID),
		fSeq:         structpb.NewStringValue(strconv.FormatUint(r.Seq, 10)),
		fKey:         structpb.NewStringValue(r.Key),
		fOp:          structpb.NewStringValue(string(r.Op)),
		fCommittedAt: structpb.NewStringValue(formatTime(r.CommittedAt)),
	}}
}

func decodeReceipt(s *structpb.Struct) (ledger.Receipt, error) {
	seq, err := parseSeq(str(s, fSeq))
	if err != nil {
		return ledger.Receipt{}, err
	}
	at, err := parseTime(str(s, fCommittedAt))
	if err != nil {
		return ledger.Receipt{}, err
	}
	return ledger.Receipt{
		TxID:        str(s, fTxID),
		Seq:         seq,
		Key:         str(s, fKey),
		Op:          ledger.Op(str(s, fOp)),
		CommittedAt: at,
	}, nil
}

func encodeEntries(entries []ledger.Entry) *structpb.Struct {
	list := make([]*structpb.Value, 0, len(entries))
	for _, e := range entries {
		list = append(list, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fSeq:         structpb.NewStringValue(strconv.FormatUint(e.Seq, 10)),
			fOp:          structpb.NewStringValue(string(e.Op)),
			fKey:         structpb.NewStringValue(e.Key),
			fValueCID:    structpb.NewStringValue(e.ValueCID),
			fPrevHash:    structpb.NewStringValue(e.PrevHash),
			fEntryHash:   structpb.NewStringValue(e.EntryHash),
			fCommittedAt: structpb.NewStringValue(formatTime(e.CommittedAt)),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fEntries: structpb.NewListValue(&structpb.ListValue{Values: list}),
	}}
}

func decodeEntries(s *structpb.Struct) ([]ledger.Entry, error) {
	vals := s.GetFields()[fEntries].GetListValue().GetValues()
	out := make([]ledger.Entry, 0, len(vals))
	for _, v := range vals {
		es := v.GetStructValue()
		seq, err := parseSeq(str(es, fSeq))
		if err != nil {
			return nil, err
		}
		at, err := parseTime(str(es, fCommittedAt))
		if err != nil {
			return nil, err
		}
		out = append(out, ledger.Entry{
			Seq:         seq,
			Op:          ledger.Op(str(es, fOp)),
			Key:         str(es, fKey),
			ValueCID:    str(es, fValueCID),
			PrevHash:    str(es, fPrevHash),
			EntryHash:   str(es, fEntryHash),
			CommittedAt: at,
		})
	}
	return out, nil
}

func parseSeq(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", fSeq, err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", fCommittedAt, err)
	}
	return t, nil
}
