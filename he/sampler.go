package he

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v4/ring"
	"github.com/tuneinsight/lattigo/v4/utils"
)

// Sampler draws the secret randomness of encryption, key generation,
// decryption smudging and proof masks. A Sampler is not safe for concurrent
// use; every operation creates its own.
type Sampler struct {
	params   *Parameters
	prng     utils.PRNG
	gaussian *ring.GaussianSampler
	uniform  *ring.UniformSampler
}

// NewSampler returns a sampler keyed from the system randomness.
func NewSampler(params *Parameters) (*Sampler, error) {
	prng, err := utils.NewPRNG()
	if err != nil {
		return nil, fmt.Errorf("he: prng: %w", err)
	}
	return newSampler(params, prng), nil
}

// NewKeyedSampler returns a deterministic sampler, for tests and replay.
func NewKeyedSampler(params *Parameters, seed []byte) (*Sampler, error) {
	prng, err := utils.NewKeyedPRNG(seed)
	if err != nil {
		return nil, fmt.Errorf("he: keyed prng: %w", err)
	}
	return newSampler(params, prng), nil
}

func newSampler(params *Parameters, prng utils.PRNG) *Sampler {
	return &Sampler{
		params:   params,
		prng:     prng,
		gaussian: ring.NewGaussianSampler(prng, params.ringQ, params.Sigma, int(params.ErrorBound)),
		uniform:  ring.NewUniformSampler(prng, params.ringQ),
	}
}

// Ternary samples a polynomial with coefficients uniform in {-1, 0, 1}.
func (s *Sampler) Ternary() (*ring.Poly, error) {
	return s.Bounded(1)
}

// Error samples a truncated discrete Gaussian polynomial with coefficients
// reduced mod q.
func (s *Sampler) Error() *ring.Poly {
	p := s.params.ringQ.NewPoly()
	s.gaussian.Read(p)
	// The Gaussian sampler stores a negative zero as q.
	s.params.ringQ.Reduce(p, p)
	return p
}

// Uniform samples a polynomial uniform mod q.
func (s *Sampler) Uniform() *ring.Poly {
	p := s.params.ringQ.NewPoly()
	s.uniform.Read(p)
	return p
}

// Bounded samples a polynomial with coefficients uniform in [-bound, bound].
func (s *Sampler) Bounded(bound int64) (*ring.Poly, error) {
	p := s.params.ringQ.NewPoly()
	if err := FillPolyBounded(s.params.ringQ, s.prng, p, -bound, bound); err != nil {
		return nil, err
	}
	return p, nil
}

// BoundedInts samples n integers uniform in [-bound, bound].
func (s *Sampler) BoundedInts(n int, bound int64) ([]int64, error) {
	out := make([]int64, n)
	for i := range out {
		v, err := uniformInRange(s.prng, -bound, bound)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// FillPolyBounded fills out with coefficients sampled uniformly from the
// inclusive range [min, max] and embeds them modulo the ring modulus.
// Sampling is deterministic given the PRNG.
func FillPolyBounded(r *ring.Ring, prng io.Reader, out *ring.Poly, min, max int64) error {
	if r == nil || out == nil {
		return fmt.Errorf("nil ring or polynomial")
	}
	if prng == nil {
		return fmt.Errorf("nil PRNG")
	}
	if len(out.Coeffs) == 0 || len(r.Modulus) < len(out.Coeffs) {
		return fmt.Errorf("polynomial levels do not match the ring")
	}
	for i := range out.Coeffs[0] {
		sample, err := uniformInRange(prng, min, max)
		if err != nil {
			return err
		}
		for level := range out.Coeffs {
			modulus := r.Modulus[level]
			if sample >= 0 {
				out.Coeffs[level][i] = uint64(sample) % modulus
			} else if neg := uint64(-sample) % modulus; neg == 0 {
				out.Coeffs[level][i] = 0
			} else {
				out.Coeffs[level][i] = modulus - neg
			}
		}
	}
	return nil
}

// uniformInRange rejection-samples an integer uniform in [min, max].
func uniformInRange(prng io.Reader, min, max int64) (int64, error) {
	if max < min {
		return 0, fmt.Errorf("invalid bounds: max < min (%d < %d)", max, min)
	}
	span := max - min + 1
	if span <= 0 {
		return 0, fmt.Errorf("invalid bounds range (overflow)")
	}
	rangeSize := uint64(span)
	threshold := (^uint64(0) / rangeSize) * rangeSize
	var buf [8]byte
	for {
		if _, err := io.ReadFull(prng, buf[:]); err != nil {
			return 0, fmt.Errorf("prng read: %w", err)
		}
		if word := binary.LittleEndian.Uint64(buf[:]); word < threshold {
			return int64(word%rangeSize) + min, nil
		}
	}
}
