package he

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v4/ring"
)

// AddMany sums ciphertexts component-wise. It fails on an empty input.
func AddMany(params *Parameters, cts []*Ciphertext) (*Ciphertext, error) {
	if len(cts) == 0 {
		return nil, fmt.Errorf("he: AddMany over no ciphertexts")
	}
	ringQ := params.ringQ
	acc := ZeroCiphertext(params)
	for i, ct := range cts {
		if err := params.CheckCiphertext(ct); err != nil {
			return nil, fmt.Errorf("he: operand %d: %w", i, err)
		}
		ringQ.Add(acc.C0, ct.C0, acc.C0)
		ringQ.Add(acc.C1, ct.C1, acc.C1)
	}
	return acc, nil
}

// DecryptionShare is h_i = tsk_i * (lambda_i * c1) + e_smudge for one
// ciphertext and one committee.
type DecryptionShare struct {
	Point  uint64
	Lambda uint64
	Value  *ring.Poly
}

// ScaledC1 returns lambda * c1.
func ScaledC1(params *Parameters, lambda uint64, c1 *ring.Poly) *ring.Poly {
	out := params.ringQ.NewPoly()
	params.ringQ.MulScalar(c1, lambda, out)
	return out
}

// PartialDecrypt computes a server's committee-bound decryption share of ct
// and returns the smudging noise used, which the server needs as a proof
// witness. The noise must not be published.
func PartialDecrypt(params *Parameters, key *KeyShare, lambda uint64, ct *Ciphertext) (*DecryptionShare, *ring.Poly, error) {
	if key == nil || key.Value == nil {
		return nil, nil, fmt.Errorf("he: nil key share")
	}
	if err := params.CheckCiphertext(ct); err != nil {
		return nil, nil, fmt.Errorf("he: %w", err)
	}
	smp, err := NewSampler(params)
	if err != nil {
		return nil, nil, err
	}
	noise, err := smp.Bounded(params.SmudgingBound)
	if err != nil {
		return nil, nil, err
	}
	ringQ := params.ringQ
	h := ringQ.NewPoly()
	MulPoly(ringQ, key.Value, ScaledC1(params, lambda, ct.C1), h)
	ringQ.Add(h, noise, h)
	return &DecryptionShare{Point: key.Point, Lambda: lambda, Value: h}, noise, nil
}

// CombineShares recovers the plaintext from c0 and the committee's shares:
// Decode(c0 + sum h_i). The shares must come from one full committee.
func CombineShares(params *Parameters, ct *Ciphertext, shares []*DecryptionShare) ([]int64, error) {
	if err := params.CheckCiphertext(ct); err != nil {
		return nil, fmt.Errorf("he: %w", err)
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("he: no decryption shares")
	}
	ringQ := params.ringQ
	acc := CopyPoly(ringQ, ct.C0)
	seen := make(map[uint64]bool, len(shares))
	for _, sh := range shares {
		if sh == nil {
			return nil, fmt.Errorf("he: nil decryption share")
		}
		if seen[sh.Point] {
			return nil, fmt.Errorf("he: duplicate share for point %d", sh.Point)
		}
		seen[sh.Point] = true
		if err := params.CheckPoly(sh.Value); err != nil {
			return nil, fmt.Errorf("he: share %d: %w", sh.Point, err)
		}
		ringQ.Add(acc, sh.Value, acc)
	}
	return params.Decode(acc), nil
}
