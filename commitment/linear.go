// Package commitment provides the two commitment layers the proofs are built
// on: linear maps over R_q (the public matrices of the lattice relations) and
// Pedersen vector commitments over edwards25519.
package commitment

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v4/ring"
)

// Matrix is a row-major matrix of coefficient-domain polynomials. A nil entry
// stands for the zero polynomial.
type Matrix [][]*ring.Poly

// Vector is a helper alias for a slice of polynomials.
type Vector []*ring.Poly

// Apply computes A · vec in Z_q[X]/(X^N+1). Inputs and outputs are in
// coefficient domain; products go through the NTT.
func Apply(ringQ *ring.Ring, A Matrix, vec Vector) (Vector, error) {
	if ringQ == nil {
		return nil, fmt.Errorf("nil ring")
	}
	if len(A) == 0 || len(A[0]) == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	nCols := len(A[0])
	if nCols != len(vec) {
		return nil, fmt.Errorf("dimension mismatch: cols=%d vec=%d", nCols, len(vec))
	}
	vecNTT := make(Vector, nCols)
	for j, v := range vec {
		if v == nil {
			return nil, fmt.Errorf("nil polynomial at vec[%d]", j)
		}
		vecNTT[j] = ringQ.NewPoly()
		ringQ.NTT(v, vecNTT[j])
	}
	out := make(Vector, len(A))
	entry := ringQ.NewPoly()
	for i := range A {
		if len(A[i]) != nCols {
			return nil, fmt.Errorf("ragged matrix at row %d", i)
		}
		acc := ringQ.NewPoly()
		for j := 0; j < nCols; j++ {
			if A[i][j] == nil {
				continue
			}
			ringQ.NTT(A[i][j], entry)
			ringQ.MulCoeffs(entry, vecNTT[j], entry)
			ringQ.Add(acc, entry, acc)
		}
		ringQ.InvNTT(acc, acc)
		out[i] = acc
	}
	return out, nil
}

// Verify recomputes A · vec and checks it matches image.
func Verify(ringQ *ring.Ring, A Matrix, vec, image Vector) error {
	if len(image) != len(A) {
		return fmt.Errorf("image length mismatch: got %d want %d", len(image), len(A))
	}
	recomputed, err := Apply(ringQ, A, vec)
	if err != nil {
		return err
	}
	for i := range recomputed {
		if image[i] == nil || !ringQ.Equal(recomputed[i], image[i]) {
			return fmt.Errorf("image mismatch at row %d", i)
		}
	}
	return nil
}

// Constant returns the constant polynomial c.
func Constant(ringQ *ring.Ring, c uint64) *ring.Poly {
	p := ringQ.NewPoly()
	p.Coeffs[0][0] = c % ringQ.Modulus[0]
	return p
}
