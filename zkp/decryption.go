package zkp

import (
	"fmt"

	"github.com/asu-crypto/mario/commitment"
	"github.com/asu-crypto/mario/he"
	"github.com/tuneinsight/lattigo/v4/ring"
)

// DecryptionProof shows that a decryption share was computed with the key
// share behind a server's verification key:
//
//	vk = -a*tsk + e',  h = tsk*(lambda*c1) + e_s
//
// with small e' and e_s.
type DecryptionProof struct {
	Binding []byte
	Digest  []byte
	// Z holds the responses for (tsk, e', e_s).
	Z [][]int64
}

func decryptionRelation(hp *he.Parameters, vk *ring.Poly, ct *he.Ciphertext, share *he.DecryptionShare) *Relation {
	ringQ := hp.RingQ()
	one := commitment.Constant(ringQ, 1)
	return &Relation{
		Matrix: commitment.Matrix{
			{he.NegPoly(ringQ, hp.CRS()), one, nil},
			{he.ScaledC1(hp, share.Lambda, ct.C1), nil, one},
		},
		Image: commitment.Vector{vk, share.Value},
		Columns: []Column{
			{Name: "tsk"},
			{Name: "e'", Bound: hp.ErrorBound},
			{Name: "e_s", Bound: hp.SmudgingBound},
		},
	}
}

func decryptionTranscript(hp *he.Parameters, vk *ring.Poly, ct *he.Ciphertext, share *he.DecryptionShare, binding []byte) func() *Transcript {
	digest := hp.Digest()
	return func() *Transcript {
		tr := NewTranscript("mario/decryption/v1")
		tr.AppendBytes("params", digest)
		tr.AppendUint64("point", share.Point)
		tr.AppendUint64("lambda", share.Lambda)
		tr.AppendPolys("vk", vk)
		tr.AppendPolys("ct", ct.C0, ct.C1)
		tr.AppendPolys("share", share.Value)
		tr.AppendBytes("binding", binding)
		return tr
	}
}

// ProvePartialDecryption proves that share = PartialDecrypt(key, lambda, ct)
// with smudging noise. vk must be the verification key of key.
func ProvePartialDecryption(hp *he.Parameters, key *he.KeyShare, vk *he.VerificationKey, ct *he.Ciphertext, share *he.DecryptionShare, noise *ring.Poly, binding []byte) (*DecryptionProof, error) {
	if key == nil || vk == nil || share == nil || noise == nil {
		return nil, fmt.Errorf("zkp: incomplete decryption witness")
	}
	if key.Point != vk.Point || key.Point != share.Point {
		return nil, fmt.Errorf("zkp: key share, verification key and share disagree on the point")
	}
	if err := hp.CheckCiphertext(ct); err != nil {
		return nil, fmt.Errorf("zkp: %w", err)
	}
	rel := decryptionRelation(hp, vk.Value, ct, share)
	wit := []*ring.Poly{key.Value, key.Noise, noise}
	core, err := proveLinear(hp, rel, wit, decryptionTranscript(hp, vk.Value, ct, share, binding), nil)
	if err != nil {
		return nil, fmt.Errorf("zkp: decryption proof: %w", err)
	}
	return &DecryptionProof{Binding: append([]byte(nil), binding...), Digest: core.Digest, Z: core.Z}, nil
}

// VerifyPartialDecryption checks a DecryptionProof for share against ct and
// the server's verification key.
func VerifyPartialDecryption(hp *he.Parameters, vk *he.VerificationKey, ct *he.Ciphertext, share *he.DecryptionShare, proof *DecryptionProof) error {
	if proof == nil || vk == nil || share == nil {
		return fmt.Errorf("nil proof, verification key or share")
	}
	if vk.Point != share.Point {
		return fmt.Errorf("share point %d does not match verification key %d", share.Point, vk.Point)
	}
	if err := hp.CheckCiphertext(ct); err != nil {
		return err
	}
	if err := hp.CheckPoly(vk.Value); err != nil {
		return fmt.Errorf("vk: %w", err)
	}
	if err := hp.CheckPoly(share.Value); err != nil {
		return fmt.Errorf("share: %w", err)
	}
	if share.Lambda == 0 || share.Lambda >= hp.Q {
		return fmt.Errorf("invalid lagrange coefficient")
	}
	rel := decryptionRelation(hp, vk.Value, ct, share)
	core := &proofCore{Digest: proof.Digest, Z: proof.Z}
	return verifyLinear(hp, rel, core, decryptionTranscript(hp, vk.Value, ct, share, proof.Binding), nil)
}
