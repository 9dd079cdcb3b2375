package zkp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v4/ring"
	"github.com/tuneinsight/lattigo/v4/utils"
	"go.dedis.ch/kyber/v3"
)

// Challenge is a sparse ternary polynomial c = sum_k sign_k X^pos_k with
// exactly Weight non-zero coefficients, so ||c*x||_inf <= Weight*||x||_inf.
type Challenge struct {
	N         int
	Positions []int
	Signs     []int8
}

// DeriveChallenge expands a Fiat-Shamir digest into a challenge of the given
// weight over a ring of degree n.
func DeriveChallenge(digest []byte, n, weight int) (*Challenge, error) {
	if weight <= 0 || weight > n {
		return nil, fmt.Errorf("zkp: challenge weight %d out of range", weight)
	}
	prng, err := utils.NewKeyedPRNG(Expand(32, "mario/challenge", digest))
	if err != nil {
		return nil, fmt.Errorf("zkp: challenge prng: %w", err)
	}
	ch := &Challenge{N: n, Positions: make([]int, 0, weight), Signs: make([]int8, 0, weight)}
	used := make(map[int]bool, weight)
	limit := (uint32(1) << 31) / uint32(n) * uint32(n)
	var buf [4]byte
	for len(ch.Positions) < weight {
		if _, err := io.ReadFull(prng, buf[:]); err != nil {
			return nil, fmt.Errorf("zkp: challenge read: %w", err)
		}
		w := binary.LittleEndian.Uint32(buf[:])
		// Low bit is the sign, the remaining 31 bits the position.
		sign := int8(1)
		if w&1 == 1 {
			sign = -1
		}
		w >>= 1
		if w >= limit {
			continue
		}
		pos := int(w % uint32(n))
		if used[pos] {
			continue
		}
		used[pos] = true
		ch.Positions = append(ch.Positions, pos)
		ch.Signs = append(ch.Signs, sign)
	}
	return ch, nil
}

// term returns the sign and source index of x contributing to coefficient j
// through the k-th monomial of c in the negacyclic product c*x.
func (c *Challenge) term(j, k int) (int, bool) {
	src := j - c.Positions[k]
	neg := c.Signs[k] < 0
	if src < 0 {
		src += c.N
		neg = !neg
	}
	return src, neg
}

// MulInt computes c*x over the integers in Z[X]/(X^N+1).
func (c *Challenge) MulInt(x []int64) []int64 {
	out := make([]int64, c.N)
	for j := range out {
		var acc int64
		for k := range c.Positions {
			src, neg := c.term(j, k)
			if neg {
				acc -= x[src]
			} else {
				acc += x[src]
			}
		}
		out[j] = acc
	}
	return out
}

// MulPoly computes c*p in Z_q[X]/(X^N+1), coefficient domain.
func (c *Challenge) MulPoly(ringQ *ring.Ring, p *ring.Poly) *ring.Poly {
	q := ringQ.Modulus[0]
	out := ringQ.NewPoly()
	for j := 0; j < c.N; j++ {
		var acc uint64
		for k := range c.Positions {
			src, neg := c.term(j, k)
			v := p.Coeffs[0][src]
			if neg {
				acc = (acc + q - v) % q
			} else {
				acc = (acc + v) % q
			}
		}
		out.Coeffs[0][j] = acc
	}
	return out
}

// MulScalars computes c*r for a vector of group scalars.
func (c *Challenge) MulScalars(group kyber.Group, r []kyber.Scalar) []kyber.Scalar {
	out := make([]kyber.Scalar, c.N)
	for j := range out {
		acc := group.Scalar().Zero()
		for k := range c.Positions {
			src, neg := c.term(j, k)
			if neg {
				acc.Sub(acc, r[src])
			} else {
				acc.Add(acc, r[src])
			}
		}
		out[j] = acc
	}
	return out
}

// MulPoints computes c*P for a vector of group elements.
func (c *Challenge) MulPoints(group kyber.Group, pts []kyber.Point) []kyber.Point {
	out := make([]kyber.Point, c.N)
	for j := range out {
		acc := group.Point().Null()
		for k := range c.Positions {
			src, neg := c.term(j, k)
			if neg {
				acc.Sub(acc, pts[src])
			} else {
				acc.Add(acc, pts[src])
			}
		}
		out[j] = acc
	}
	return out
}
