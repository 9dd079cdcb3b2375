package he

import (
	"encoding/binary"
	"fmt"

	"github.com/tuneinsight/lattigo/v4/ring"
)

// CenteredCoeffs converts a coefficient-domain poly to integers in
// (-q/2, q/2].
func CenteredCoeffs(ringQ *ring.Ring, p *ring.Poly) []int64 {
	out := make([]int64, ringQ.N)
	q := int64(ringQ.Modulus[0])
	half := q / 2
	for i, c := range p.Coeffs[0] {
		v := int64(c)
		if v > half {
			v -= q
		}
		out[i] = v
	}
	return out
}

// PolyFromCentered builds a coefficient-domain poly from signed integers.
// Missing trailing coefficients are zero.
func PolyFromCentered(ringQ *ring.Ring, coeffs []int64) *ring.Poly {
	p := ringQ.NewPoly()
	q := int64(ringQ.Modulus[0])
	for i, v := range coeffs {
		v %= q
		if v < 0 {
			v += q
		}
		p.Coeffs[0][i] = uint64(v)
	}
	return p
}

// CopyPoly returns a fresh copy of p.
func CopyPoly(ringQ *ring.Ring, p *ring.Poly) *ring.Poly {
	cp := ringQ.NewPoly()
	ring.Copy(p, cp)
	return cp
}

// MulPoly computes out = a*b in Z_q[X]/(X^N+1), all in coefficient domain.
// out may alias a or b.
func MulPoly(ringQ *ring.Ring, a, b, out *ring.Poly) {
	an := ringQ.NewPoly()
	bn := ringQ.NewPoly()
	ringQ.NTT(a, an)
	ringQ.NTT(b, bn)
	ringQ.MulCoeffs(an, bn, an)
	ringQ.InvNTT(an, out)
}

// NegPoly returns -p.
func NegPoly(ringQ *ring.Ring, p *ring.Poly) *ring.Poly {
	out := ringQ.NewPoly()
	ringQ.Sub(out, p, out)
	return out
}

// InfNorm returns the L-infinity norm of p's centered coefficients.
func InfNorm(ringQ *ring.Ring, p *ring.Poly) int64 {
	var m int64
	for _, v := range CenteredCoeffs(ringQ, p) {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}

// CheckBound ensures all centered coefficients of p lie in [-bound, bound].
func CheckBound(ringQ *ring.Ring, p *ring.Poly, bound int64, name string) error {
	if n := InfNorm(ringQ, p); n > bound {
		return fmt.Errorf("%s: infinity norm %d exceeds bound %d", name, n, bound)
	}
	return nil
}

// AppendPoly appends the little-endian encoding of p's coefficients.
func AppendPoly(dst []byte, p *ring.Poly) []byte {
	for _, c := range p.Coeffs[0] {
		dst = binary.LittleEndian.AppendUint64(dst, c)
	}
	return dst
}
