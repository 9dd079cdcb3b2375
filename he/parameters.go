// Package he implements the additively homomorphic threshold RLWE scheme the
// aggregation runs on: public-key encryption with exportable randomness,
// multi-operand addition, trusted-dealer threshold keys, partial decryption
// and share recombination. Plaintexts are coefficient-encoded integer blocks
// of length N, scaled by Delta = floor(Q/T).
package he

import (
	"fmt"

	"github.com/asu-crypto/mario/params"
	"github.com/tuneinsight/lattigo/v4/ring"
	"github.com/tuneinsight/lattigo/v4/utils"
)

// Parameters is the instantiated parameter set: the ring, the scaling factor
// and the common random polynomial a every key is built on.
type Parameters struct {
	params.Params
	ringQ *ring.Ring
	delta uint64
	crs   *ring.Poly
}

// NewParameters validates p and instantiates the ring and the CRS.
func NewParameters(p params.Params) (*Parameters, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ringQ, err := ring.NewRing(p.N(), []uint64{p.Q})
	if err != nil {
		return nil, fmt.Errorf("he: new ring: %w", err)
	}
	seed, err := p.DeriveSeed("crs")
	if err != nil {
		return nil, err
	}
	prng, err := utils.NewKeyedPRNG(seed)
	if err != nil {
		return nil, fmt.Errorf("he: crs prng: %w", err)
	}
	crs := ringQ.NewPoly()
	ring.NewUniformSampler(prng, ringQ).Read(crs)
	return &Parameters{Params: p, ringQ: ringQ, delta: p.Q / p.T, crs: crs}, nil
}

// RingQ returns the ciphertext ring. Callers must not mutate it.
func (p *Parameters) RingQ() *ring.Ring { return p.ringQ }

// Delta returns the plaintext scaling factor floor(Q/T).
func (p *Parameters) Delta() uint64 { return p.delta }

// CRS returns a copy of the common random polynomial a.
func (p *Parameters) CRS() *ring.Poly { return CopyPoly(p.ringQ, p.crs) }

// CheckPoly reports whether pol is a well-formed single-level polynomial of
// the ring with reduced coefficients.
func (p *Parameters) CheckPoly(pol *ring.Poly) error {
	if pol == nil {
		return fmt.Errorf("nil polynomial")
	}
	if len(pol.Coeffs) != 1 || len(pol.Coeffs[0]) != p.ringQ.N {
		return fmt.Errorf("polynomial shape mismatch")
	}
	for i, c := range pol.Coeffs[0] {
		if c >= p.Q {
			return fmt.Errorf("coefficient %d not reduced mod q", i)
		}
	}
	return nil
}
