package he

import (
	"fmt"
	"math/big"

	"github.com/tuneinsight/lattigo/v4/ring"
)

// SecretKey is the ternary RLWE secret s.
type SecretKey struct {
	S *ring.Poly
}

// PublicKey is (p0, p1) = (-a*s + e, a). It is immutable once generated.
type PublicKey struct {
	P0, P1 *ring.Poly
}

// KeyShare is a server's Shamir share tsk_i of the secret key, together with
// the noise of its verification key (needed to prove partial decryptions).
type KeyShare struct {
	Point uint64
	Value *ring.Poly
	Noise *ring.Poly
}

// VerificationKey is the public commitment vk_i = -a*tsk_i + e'_i to a key share.
type VerificationKey struct {
	Point uint64
	Value *ring.Poly
}

// ThresholdKeys is the output of the trusted dealer.
type ThresholdKeys struct {
	Public       *PublicKey
	Shares       []*KeyShare
	Verification []*VerificationKey
	Threshold    int
}

// VerificationKey returns the verification key of the given point, or nil.
func (tk *ThresholdKeys) VerificationKey(point uint64) *VerificationKey {
	for _, vk := range tk.Verification {
		if vk.Point == point {
			return vk
		}
	}
	return nil
}

// KeyGen samples a fresh secret key and its public key.
func KeyGen(params *Parameters) (*SecretKey, *PublicKey, error) {
	smp, err := NewSampler(params)
	if err != nil {
		return nil, nil, err
	}
	s, err := smp.Ternary()
	if err != nil {
		return nil, nil, err
	}
	ringQ := params.ringQ
	p0 := ringQ.NewPoly()
	MulPoly(ringQ, params.crs, s, p0)
	ringQ.Sub(smp.Error(), p0, p0)
	return &SecretKey{S: s}, &PublicKey{P0: p0, P1: params.CRS()}, nil
}

// GenThresholdKeys runs the trusted dealer: it generates a key pair and
// Shamir-shares the secret among n servers with reconstruction threshold t.
// Server i (0-based) receives the evaluation point i+1.
func GenThresholdKeys(params *Parameters, n, t int) (*ThresholdKeys, error) {
	sk, pk, err := KeyGen(params)
	if err != nil {
		return nil, err
	}
	return Thresholdize(params, sk, pk, n, t)
}

// Thresholdize splits sk into n shares with threshold t and derives the
// verification keys.
func Thresholdize(params *Parameters, sk *SecretKey, pk *PublicKey, n, t int) (*ThresholdKeys, error) {
	if t < 1 || n < t {
		return nil, fmt.Errorf("he: invalid threshold %d-of-%d", t, n)
	}
	if uint64(n) >= params.Q {
		return nil, fmt.Errorf("he: too many servers for q")
	}
	smp, err := NewSampler(params)
	if err != nil {
		return nil, err
	}
	ringQ := params.ringQ
	coeffs := make([]*ring.Poly, t)
	coeffs[0] = sk.S
	for k := 1; k < t; k++ {
		coeffs[k] = smp.Uniform()
	}

	out := &ThresholdKeys{Public: pk, Threshold: t}
	tmp := ringQ.NewPoly()
	for i := 0; i < n; i++ {
		x := uint64(i + 1)
		share := CopyPoly(ringQ, coeffs[0])
		xpow := uint64(1)
		for k := 1; k < t; k++ {
			xpow = mulMod(xpow, x, params.Q)
			ringQ.MulScalar(coeffs[k], xpow, tmp)
			ringQ.Add(share, tmp, share)
		}
		noise := smp.Error()
		vk := ringQ.NewPoly()
		MulPoly(ringQ, params.crs, share, vk)
		ringQ.Sub(noise, vk, vk)
		out.Shares = append(out.Shares, &KeyShare{Point: x, Value: share, Noise: noise})
		out.Verification = append(out.Verification, &VerificationKey{Point: x, Value: vk})
	}
	return out, nil
}

// LagrangeCoefficient returns lambda_i = prod_{j != i} x_j / (x_j - x_i) mod q
// for evaluation at zero over the committee points.
func LagrangeCoefficient(q uint64, committee []uint64, point uint64) (uint64, error) {
	Q := new(big.Int).SetUint64(q)
	num := big.NewInt(1)
	den := big.NewInt(1)
	found := false
	seen := make(map[uint64]bool, len(committee))
	for _, xj := range committee {
		if xj == 0 || xj >= q {
			return 0, fmt.Errorf("he: invalid evaluation point %d", xj)
		}
		if seen[xj] {
			return 0, fmt.Errorf("he: duplicate evaluation point %d", xj)
		}
		seen[xj] = true
		if xj == point {
			found = true
			continue
		}
		num.Mul(num, new(big.Int).SetUint64(xj))
		num.Mod(num, Q)
		diff := new(big.Int).Sub(new(big.Int).SetUint64(xj), new(big.Int).SetUint64(point))
		den.Mul(den, diff)
		den.Mod(den, Q)
	}
	if !found {
		return 0, fmt.Errorf("he: point %d not in committee", point)
	}
	inv := ring.ModExp(den.Uint64(), q-2, q)
	return mulMod(num.Uint64(), inv, q), nil
}

func mulMod(a, b, q uint64) uint64 {
	r := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return r.Mod(r, new(big.Int).SetUint64(q)).Uint64()
}
