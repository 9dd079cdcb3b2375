package he

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v4/ring"
)

// Ciphertext is an RLWE ciphertext (c0, c1) in coefficient domain.
type Ciphertext struct {
	C0, C1 *ring.Poly
}

// MarshalBinary returns the canonical encoding: c0 then c1, little-endian
// 64-bit coefficients.
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	if ct == nil || ct.C0 == nil || ct.C1 == nil {
		return nil, fmt.Errorf("he: nil ciphertext")
	}
	buf := make([]byte, 0, 16*len(ct.C0.Coeffs[0]))
	buf = AppendPoly(buf, ct.C0)
	return AppendPoly(buf, ct.C1), nil
}

// CopyNew returns a deep copy of ct.
func (ct *Ciphertext) CopyNew(params *Parameters) *Ciphertext {
	return &Ciphertext{C0: CopyPoly(params.ringQ, ct.C0), C1: CopyPoly(params.ringQ, ct.C1)}
}

// Equal reports whether both ciphertexts have identical components.
func (ct *Ciphertext) Equal(params *Parameters, other *Ciphertext) bool {
	return params.ringQ.Equal(ct.C0, other.C0) && params.ringQ.Equal(ct.C1, other.C1)
}

// CheckCiphertext verifies ct is well-formed for params.
func (p *Parameters) CheckCiphertext(ct *Ciphertext) error {
	if ct == nil {
		return fmt.Errorf("nil ciphertext")
	}
	if err := p.CheckPoly(ct.C0); err != nil {
		return fmt.Errorf("c0: %w", err)
	}
	if err := p.CheckPoly(ct.C1); err != nil {
		return fmt.Errorf("c1: %w", err)
	}
	return nil
}

// ZeroCiphertext is the trivial encryption (0, 0) of the zero block.
func ZeroCiphertext(params *Parameters) *Ciphertext {
	return &Ciphertext{C0: params.ringQ.NewPoly(), C1: params.ringQ.NewPoly()}
}

// Witness is the encryption randomness: ternary u and Gaussian e1, e2.
// It never leaves the client.
type Witness struct {
	U, E1, E2 *ring.Poly
}

// Encryptor encrypts plaintext blocks under a fixed public key.
type Encryptor struct {
	params *Parameters
	pk     *PublicKey
}

// NewEncryptor returns an encryptor for pk.
func NewEncryptor(params *Parameters, pk *PublicKey) *Encryptor {
	return &Encryptor{params: params, pk: pk}
}

// PublicKey returns the key the encryptor was built with.
func (enc *Encryptor) PublicKey() *PublicKey { return enc.pk }

// Encrypt encrypts a block with fresh randomness and returns the witness
// alongside the ciphertext.
func (enc *Encryptor) Encrypt(pt []int64) (*Ciphertext, *Witness, error) {
	smp, err := NewSampler(enc.params)
	if err != nil {
		return nil, nil, err
	}
	u, err := smp.Ternary()
	if err != nil {
		return nil, nil, err
	}
	w := &Witness{U: u, E1: smp.Error(), E2: smp.Error()}
	ct, err := enc.EncryptWithRandomness(pt, w)
	if err != nil {
		return nil, nil, err
	}
	return ct, w, nil
}

// EncryptWithRandomness deterministically encrypts pt with the given
// witness: c0 = p0*u + e1 + Delta*m, c1 = p1*u + e2.
func (enc *Encryptor) EncryptWithRandomness(pt []int64, w *Witness) (*Ciphertext, error) {
	if w == nil || w.U == nil || w.E1 == nil || w.E2 == nil {
		return nil, fmt.Errorf("he: incomplete witness")
	}
	m, err := enc.params.EncodePlaintext(pt)
	if err != nil {
		return nil, err
	}
	ringQ := enc.params.ringQ
	c0 := ringQ.NewPoly()
	c1 := ringQ.NewPoly()
	MulPoly(ringQ, enc.pk.P0, w.U, c0)
	ringQ.Add(c0, w.E1, c0)
	ringQ.Add(c0, m, c0)
	MulPoly(ringQ, enc.pk.P1, w.U, c1)
	ringQ.Add(c1, w.E2, c1)
	return &Ciphertext{C0: c0, C1: c1}, nil
}

// EncodePlaintext returns Delta*m mod q for a block of at most N signed
// coefficients.
func (p *Parameters) EncodePlaintext(pt []int64) (*ring.Poly, error) {
	if len(pt) > p.ringQ.N {
		return nil, fmt.Errorf("he: plaintext has %d coefficients, ring degree is %d", len(pt), p.ringQ.N)
	}
	m := PolyFromCentered(p.ringQ, pt)
	p.ringQ.MulScalar(m, p.delta, m)
	return m, nil
}

// Decode maps a noisy Delta*m + e to m by rounding T*x/Q and centering
// mod T.
func (p *Parameters) Decode(x *ring.Poly) []int64 {
	out := make([]int64, p.ringQ.N)
	half := p.T / 2
	for i, c := range x.Coeffs[0] {
		v := ((c*p.T + p.Q/2) / p.Q) % p.T
		if v > half {
			out[i] = int64(v) - int64(p.T)
		} else {
			out[i] = int64(v)
		}
	}
	return out
}

// Decrypt decrypts with the full secret key. Deployments never hold it; it
// exists for the dealer and for tests.
func Decrypt(params *Parameters, sk *SecretKey, ct *Ciphertext) []int64 {
	ringQ := params.ringQ
	x := ringQ.NewPoly()
	MulPoly(ringQ, ct.C1, sk.S, x)
	ringQ.Add(x, ct.C0, x)
	return params.Decode(x)
}
