// Package verifier holds the pure proof verification functions and the
// verification policies the aggregator and the decryptor are composed with.
// Every check fails closed: malformed input, including input that makes the
// underlying code panic, is rejected.
package verifier

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/asu-crypto/mario/commitment"
	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/protocol"
	"github.com/asu-crypto/mario/zkp"
)

// ErrBinding is reported when a proof is bound to another context.
var ErrBinding = errors.New("proof bound to another context")

// VerifyEncryption reports whether proof shows ct is a well-formed encryption
// under pk.
func VerifyEncryption(pp *zkp.PublicParams, ct *he.Ciphertext, proof *zkp.EncryptionProof, pk *he.PublicKey) bool {
	return guard(func() error { return zkp.VerifyEncryption(pp, pk, ct, proof) }) == nil
}

// VerifyValidation reports whether proof shows the committed block lies in
// [-InputBound, InputBound].
func VerifyValidation(proof *zkp.ValidationProof, pp *zkp.PublicParams) bool {
	return guard(func() error { return zkp.VerifyRange(pp, proof) }) == nil
}

// VerifyPartialDecryption reports whether proof shows share is a correct
// partial decryption of aggregate under the key behind vk.
func VerifyPartialDecryption(pp *zkp.PublicParams, share *he.DecryptionShare, aggregate *he.Ciphertext, vk *he.VerificationKey, proof *zkp.DecryptionProof) bool {
	return guard(func() error { return zkp.VerifyPartialDecryption(pp.HE, vk, aggregate, share, proof) }) == nil
}

// Verifier is a verification policy.
type Verifier interface {
	// VerifyBlock checks one ciphertext block of a submission and its proofs.
	VerifyBlock(pk *he.PublicKey, ct *he.Ciphertext, bundle protocol.ProofBundle, binding []byte) error
	// VerifyShare checks one block of a partial decryption.
	VerifyShare(vk *he.VerificationKey, ct *he.Ciphertext, share *he.DecryptionShare, proof *zkp.DecryptionProof, binding []byte) error
	Name() string
}

// Strict is the malicious-model policy: every proof is checked.
type Strict struct {
	pp *zkp.PublicParams
}

// NewStrict returns the malicious-model policy.
func NewStrict(pp *zkp.PublicParams) *Strict { return &Strict{pp: pp} }

func (s *Strict) Name() string { return "strict" }

func (s *Strict) VerifyBlock(pk *he.PublicKey, ct *he.Ciphertext, bundle protocol.ProofBundle, binding []byte) error {
	return guard(func() error {
		if err := s.pp.HE.CheckCiphertext(ct); err != nil {
			return err
		}
		if bundle.Encryption == nil || bundle.Validation == nil {
			return fmt.Errorf("incomplete proof bundle")
		}
		if !commitment.EqualPoints(bundle.Encryption.Commitment, bundle.Validation.Commitment) {
			return fmt.Errorf("proofs reference different commitments")
		}
		if !bytes.Equal(bundle.Encryption.Binding, binding) {
			return ErrBinding
		}
		if err := zkp.VerifyEncryption(s.pp, pk, ct, bundle.Encryption); err != nil {
			return fmt.Errorf("encryption proof: %w", err)
		}
		if err := zkp.VerifyRange(s.pp, bundle.Validation); err != nil {
			return fmt.Errorf("validation proof: %w", err)
		}
		return nil
	})
}

func (s *Strict) VerifyShare(vk *he.VerificationKey, ct *he.Ciphertext, share *he.DecryptionShare, proof *zkp.DecryptionProof, binding []byte) error {
	return guard(func() error {
		if proof == nil {
			return fmt.Errorf("missing decryption proof")
		}
		if !bytes.Equal(proof.Binding, binding) {
			return ErrBinding
		}
		if err := zkp.VerifyPartialDecryption(s.pp.HE, vk, ct, share, proof); err != nil {
			return fmt.Errorf("decryption proof: %w", err)
		}
		return nil
	})
}

// SemiHonest trusts well-formed messages and only checks their shape. It
// models honest-but-curious deployments and serves as a baseline.
type SemiHonest struct {
	hp *he.Parameters
}

// NewSemiHonest returns the shape-only policy.
func NewSemiHonest(hp *he.Parameters) *SemiHonest { return &SemiHonest{hp: hp} }

func (s *SemiHonest) Name() string { return "semi-honest" }

func (s *SemiHonest) VerifyBlock(pk *he.PublicKey, ct *he.Ciphertext, _ protocol.ProofBundle, _ []byte) error {
	return guard(func() error { return s.hp.CheckCiphertext(ct) })
}

func (s *SemiHonest) VerifyShare(vk *he.VerificationKey, ct *he.Ciphertext, share *he.DecryptionShare, _ *zkp.DecryptionProof, _ []byte) error {
	return guard(func() error {
		if vk == nil || share == nil {
			return fmt.Errorf("missing verification key or share")
		}
		if vk.Point != share.Point {
			return fmt.Errorf("share point mismatch")
		}
		if err := s.hp.CheckCiphertext(ct); err != nil {
			return err
		}
		return s.hp.CheckPoly(share.Value)
	})
}

// guard runs check and turns a panic into an error.
func guard(check func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed input: %v", r)
		}
	}()
	return check()
}
