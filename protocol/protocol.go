// Package protocol defines the identifiers, messages and typed errors shared
// by clients, the aggregator and the decryption servers.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/zkp"
	uuid "gopkg.in/satori/go.uuid.v1"
	"golang.org/x/crypto/sha3"
)

// RoundID identifies one aggregation round.
type RoundID uuid.UUID

// NewRoundID returns a fresh random round identifier.
func NewRoundID() RoundID {
	return RoundID(uuid.NewV4())
}

// ParseRoundID parses the canonical textual form.
func ParseRoundID(s string) (RoundID, error) {
	u, err := uuid.FromString(s)
	if err != nil {
		return RoundID{}, fmt.Errorf("parse round id: %w", err)
	}
	return RoundID(u), nil
}

func (r RoundID) String() string { return uuid.UUID(r).String() }

// Bytes returns the 16 raw bytes of the identifier.
func (r RoundID) Bytes() []byte { return uuid.UUID(r).Bytes() }

// ClientID identifies a contributing client.
type ClientID string

// ServerID identifies a decryption server; it is the server's Shamir
// evaluation point and therefore non-zero.
type ServerID uint64

// Binding returns the context an EncryptionProof or DecryptionProof is bound
// to. A proof replayed under another round, party or block index fails.
func Binding(kind string, round RoundID, party string, index int) []byte {
	h := sha3.NewShake256()
	_, _ = h.Write([]byte("mario/binding/" + kind))
	_, _ = h.Write(round.Bytes())
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(party)))
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(party))
	binary.LittleEndian.PutUint64(n[:], uint64(index))
	_, _ = h.Write(n[:])
	out := make([]byte, 32)
	_, _ = h.Read(out)
	return out
}

// ClientBinding is the binding of block index of client in round.
func ClientBinding(round RoundID, client ClientID, index int) []byte {
	return Binding("client", round, string(client), index)
}

// ServerBinding is the binding of a server's proof for aggregate block index.
func ServerBinding(round RoundID, server ServerID, index int) []byte {
	return Binding("server", round, fmt.Sprintf("%d", server), index)
}

// ProofBundle carries the two proofs attached to one ciphertext block. Both
// proofs must reference the same commitment.
type ProofBundle struct {
	Encryption *zkp.EncryptionProof
	Validation *zkp.ValidationProof
}

// SubmissionRecord is one client's contribution to a round.
type SubmissionRecord struct {
	Round       RoundID
	Client      ClientID
	Ciphertexts []*he.Ciphertext
	Proofs      []ProofBundle
}

// Blocks returns the number of blocks in the submission.
func (s *SubmissionRecord) Blocks() int { return len(s.Ciphertexts) }

// Clone returns a deep copy of the submission. Every ciphertext must be well
// formed for hp.
func (s *SubmissionRecord) Clone(hp *he.Parameters) *SubmissionRecord {
	out := &SubmissionRecord{
		Round:       s.Round,
		Client:      s.Client,
		Ciphertexts: make([]*he.Ciphertext, len(s.Ciphertexts)),
		Proofs:      make([]ProofBundle, len(s.Proofs)),
	}
	for i, ct := range s.Ciphertexts {
		out.Ciphertexts[i] = ct.CopyNew(hp)
	}
	for i, b := range s.Proofs {
		out.Proofs[i] = ProofBundle{Encryption: b.Encryption.Clone(), Validation: b.Validation.Clone()}
	}
	return out
}

// CheckShape verifies the structural invariants of a submission.
func (s *SubmissionRecord) CheckShape() error {
	if s == nil {
		return fmt.Errorf("%w: nil submission", ErrMalformedSubmission)
	}
	if s.Client == "" {
		return fmt.Errorf("%w: empty client id", ErrMalformedSubmission)
	}
	if len(s.Ciphertexts) == 0 {
		return fmt.Errorf("%w: no blocks", ErrMalformedSubmission)
	}
	if len(s.Ciphertexts) != len(s.Proofs) {
		return fmt.Errorf("%w: %d ciphertexts but %d proof bundles", ErrMalformedSubmission, len(s.Ciphertexts), len(s.Proofs))
	}
	return nil
}

// Exclusion records why a submission was left out of the verified set.
type Exclusion struct {
	Client  ClientID
	Failure *ProofVerificationFailure
}
