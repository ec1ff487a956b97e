package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Entry is one link in the append-only commit journal. The journal records
// digests only; payload bytes live in world state.
type Entry struct {
	Seq         uint64    `json:"seq"`
	Op          Op        `json:"op"`
	Key         string    `json:"key"`
	ValueCID    string    `json:"valueCid,omitempty"`
	PrevHash    string    `json:"prevHash"`
	EntryHash   string    `json:"entryHash"`
	CommittedAt time.Time `json:"committedAt"`
}

// ContentID returns the CIDv1 (raw, sha2-256) of data.
func ContentID(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// NewEntry builds the next journal entry after prevHash and seals its hash.
func NewEntry(seq uint64, op Op, key string, value []byte, prevHash string, at time.Time) (Entry, error) {
	e := Entry{
		Seq:         seq,
		Op:          op,
		Key:         key,
		PrevHash:    prevHash,
		CommittedAt: at.UTC(),
	}
	if op == OpPut {
		id, err := ContentID(value)
		if err != nil {
			return Entry{}, err
		}
		e.ValueCID = id
	}
	e.EntryHash = e.computeHash()
	return e, nil
}

func (e Entry) computeHash() string {
	h := sha256.New()
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], e.Seq)
	h.Write(seq[:])
	for _, s := range []string{string(e.Op), e.Key, e.ValueCID, e.PrevHash, e.CommittedAt.Format(time.RFC3339Nano)} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Receipt derives the write acknowledgement for e. TxID is the CID of the
// encoded entry, so it commits to the whole link.
func (e Entry) Receipt() (Receipt, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return Receipt{}, err
	}
	id, err := ContentID(b)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{TxID: id, Seq: e.Seq, Key: e.Key, Op: e.Op, CommittedAt: e.CommittedAt}, nil
}

// VerifyEntry checks that e's hash matches its contents.
func VerifyEntry(e Entry) error {
	if got := e.computeHash(); got != e.EntryHash {
		return fmt.Errorf("journal entry %d: hash mismatch", e.Seq)
	}
	return nil
}

// VerifyChain checks a contiguous run of the global journal: every entry's hash
// is intact and links to its predecessor.
func VerifyChain(entries []Entry) error {
	for i, e := range entries {
		if err := VerifyEntry(e); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if e.Seq != prev.Seq+1 {
			return fmt.Errorf("journal entry %d: sequence gap after %d", e.Seq, prev.Seq)
		}
		if e.PrevHash != prev.EntryHash {
			return fmt.Errorf("journal entry %d: broken link", e.Seq)
		}
	}
	return nil
}
