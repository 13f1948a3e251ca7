package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/blake2b"
)

// GenesisHash: PreviousHash первой записи журнала.
const GenesisHash = ""

// ComputeActivityHash считает blake2b-256 от канонического JSON записи без поля Hash.
func ComputeActivityHash(a Activity) (string, error) {
	a.Hash = ""
	raw, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal activity: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize activity: %w", err)
	}
	sum := blake2b.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// AuditChainError указывает первую запись, на которой цепочка разорвана.
type AuditChainError struct {
	Index  int
	Reason string
}

func (e *AuditChainError) Error() string {
	return fmt.Sprintf("audit chain broken at activity %d: %s", e.Index, e.Reason)
}

// VerifyAuditTrail проходит журнал комнаты и проверяет сцепку и порядок записей.
func VerifyAuditTrail(room *DealRoom) error {
	prevHash := GenesisHash
	var prevSeq int64
	for i, a := range room.Activities {
		if a.PreviousHash != prevHash {
			return &AuditChainError{Index: i, Reason: "previous hash mismatch"}
		}
		want, err := ComputeActivityHash(a)
		if err != nil {
			return &AuditChainError{Index: i, Reason: err.Error()}
		}
		if a.Hash != want {
			return &AuditChainError{Index: i, Reason: "hash mismatch"}
		}
		if i > 0 && (a.Seq <= prevSeq || a.Timestamp.Before(room.Activities[i-1].Timestamp)) {
			return &AuditChainError{Index: i, Reason: "out of order"}
		}
		prevHash = a.Hash
		prevSeq = a.Seq
	}
	return nil
}

func (r *DealRoom) lastActivityHash() string {
	if len(r.Activities) == 0 {
		return GenesisHash
	}
	return r.Activities[len(r.Activities)-1].Hash
}
