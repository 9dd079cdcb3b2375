// Package params holds the public parameter set shared by every party of an
// aggregation deployment and the presets shipped in Parameters/params.json.
package params

import (
	"fmt"
	"io"
	"math/bits"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// Params captures the public inputs of the scheme. All parties of a
// deployment must use the same values.
type Params struct {
	Name string `json:"name,omitempty"`
	// LogN is the log2 of the ring degree N (block length).
	LogN int `json:"logN"`
	// Q is the NTT-friendly ciphertext modulus (Q = 1 mod 2N).
	Q uint64 `json:"q"`
	// T is the plaintext modulus; aggregate sums wrap modulo T.
	T uint64 `json:"t"`
	// Sigma and ErrorBound parametrise the truncated Gaussian error.
	Sigma      float64 `json:"sigma"`
	ErrorBound int64   `json:"errorBound"`
	// InputBound is the public validity predicate: every plaintext
	// coefficient lies in [-InputBound, InputBound].
	InputBound int64 `json:"inputBound"`
	// ChallengeWeight is the number of non-zero entries of a proof challenge.
	ChallengeWeight int `json:"challengeWeight"`
	// SmudgingBound bounds the flooding noise added to decryption shares.
	SmudgingBound int64 `json:"smudgingBound"`
	// MaxAttempts caps rejection-sampling restarts of the lattice provers.
	MaxAttempts int `json:"maxAttempts"`
	// Setup is the public setup string the CRS and commitment generators
	// are derived from.
	Setup string `json:"setup"`
}

// N returns the ring degree.
func (p Params) N() int { return 1 << p.LogN }

// MaxClients is the largest verified set whose block sums stay in the
// centred range (-T/2, T/2), so the aggregate decodes without wrapping.
func (p Params) MaxClients() int {
	if p.InputBound <= 0 {
		return 0
	}
	return int((p.T - 1) / 2 / uint64(p.InputBound))
}

// MaskBound returns the L-infinity bound of the masks used for a witness
// column bounded by beta in a relation with cols bounded columns.
func (p Params) MaskBound(beta int64, cols int) int64 {
	return int64(cols) * int64(p.N()) * int64(p.ChallengeWeight) * beta
}

// ResponseBound is the acceptance bound of the responses of such a column.
func (p Params) ResponseBound(beta int64, cols int) int64 {
	return p.MaskBound(beta, cols) - int64(p.ChallengeWeight)*beta
}

// Validate checks the parameter set for internal consistency.
func (p Params) Validate() error {
	if p.LogN < 4 || p.LogN > 15 {
		return fmt.Errorf("params: logN=%d out of range [4,15]", p.LogN)
	}
	n := uint64(p.N())
	if p.Q < 3 || p.Q&1 == 0 || (p.Q-1)%(2*n) != 0 {
		return fmt.Errorf("params: q=%d is not NTT-friendly for N=%d", p.Q, n)
	}
	if p.T < 2 || p.T >= p.Q {
		return fmt.Errorf("params: t=%d must lie in [2, q)", p.T)
	}
	if hi, lo := bits.Mul64(p.Q, p.T); hi != 0 || lo >= 1<<63 {
		return fmt.Errorf("params: q*t overflows 63 bits")
	}
	if p.Sigma <= 0 || p.ErrorBound <= 0 {
		return fmt.Errorf("params: sigma and errorBound must be positive")
	}
	if p.InputBound <= 0 || uint64(2*p.InputBound) >= p.T {
		return fmt.Errorf("params: inputBound=%d must be positive and below t/2", p.InputBound)
	}
	if p.ChallengeWeight <= 0 || p.ChallengeWeight > p.N() {
		return fmt.Errorf("params: challengeWeight=%d out of range [1,%d]", p.ChallengeWeight, p.N())
	}
	if p.SmudgingBound <= 0 {
		return fmt.Errorf("params: smudgingBound must be positive")
	}
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("params: maxAttempts must be positive")
	}
	if p.Setup == "" {
		return fmt.Errorf("params: empty setup string")
	}
	half := int64(p.Q / 2)
	for _, m := range []struct {
		name string
		beta int64
		cols int
	}{
		{"plaintext", p.InputBound, 4},
		{"error", p.ErrorBound, 4},
		{"smudging", p.SmudgingBound, 2},
	} {
		if mb := p.MaskBound(m.beta, m.cols); mb <= 0 || mb >= half {
			return fmt.Errorf("params: %s mask bound %d exceeds q/2", m.name, mb)
		}
	}
	return nil
}

// Digest returns a SHAKE-256 digest of the parameter set, used to bind
// proofs to the deployment.
func (p Params) Digest() []byte {
	h := sha3.NewShake256()
	fmt.Fprintf(h, "mario/params|%d|%d|%d|%g|%d|%d|%d|%d|%s",
		p.LogN, p.Q, p.T, p.Sigma, p.ErrorBound, p.InputBound, p.ChallengeWeight, p.SmudgingBound, p.Setup)
	out := make([]byte, 32)
	_, _ = h.Read(out)
	return out
}

// DeriveSeed expands the public setup string into a 32-byte seed for the
// given label.
func (p Params) DeriveSeed(label string) ([]byte, error) {
	r := hkdf.New(sha3.New256, []byte(p.Setup), p.Digest(), []byte("mario/"+label))
	seed := make([]byte, 32)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("derive %s seed: %w", label, err)
	}
	return seed, nil
}
