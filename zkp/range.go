package zkp

import (
	"crypto/subtle"
	"fmt"
	"math/bits"

	"github.com/asu-crypto/mario/commitment"
	"go.dedis.ch/kyber/v3"
)

// ValidationProof shows that every value committed in Commitment lies in
// [-B, B]. Each coefficient m is decomposed twice, as m+B and as
// m + 2^L-1-B with L = bitlen(2B); both must be L-bit numbers, which holds
// exactly when -B <= m <= B. Every bit commitment carries a CDS OR-proof of
// opening to 0 or 1, all under one Fiat-Shamir challenge.
type ValidationProof struct {
	Bound      int64
	Commitment []kyber.Point
	// Bits[j] holds the 2L bit commitments of coefficient j: the low
	// decomposition first.
	Bits [][]kyber.Point
	// E0, Z0 and Z1 are the OR-proof responses; the branch-1 challenge is
	// e - E0.
	E0, Z0, Z1 [][]kyber.Scalar
	Digest     []byte
}

// rangeBits returns L = bitlen(2B).
func rangeBits(bound int64) int {
	return bits.Len64(uint64(2 * bound))
}

func rangeOffsets(bound int64) [2]int64 {
	L := rangeBits(bound)
	return [2]int64{bound, (int64(1) << L) - 1 - bound}
}

func rangeTranscript(pp *PublicParams, bound int64, coms []kyber.Point, bitComs [][]kyber.Point) *Transcript {
	tr := NewTranscript("mario/range/v1")
	tr.AppendBytes("params", pp.digest)
	tr.AppendUint64("bound", uint64(bound))
	tr.AppendPoints("commitment", coms...)
	for _, row := range bitComs {
		tr.AppendPoints("bits", row...)
	}
	return tr
}

func rangeChallenge(pp *PublicParams, digest []byte) kyber.Scalar {
	suite := pp.Pedersen.Suite()
	return suite.Scalar().Pick(suite.XOF(Expand(32, "mario/range/e", digest)))
}

// ProveRange proves that the committed block pt lies in [-InputBound,
// InputBound]. coms and op must be the commitment used in the encryption
// proof of the same block.
func ProveRange(pp *PublicParams, pt []int64, coms []kyber.Point, op *commitment.Opening) (*ValidationProof, error) {
	bound := pp.HE.InputBound
	for i, v := range pt {
		if v < -bound || v > bound {
			return nil, fmt.Errorf("zkp: coefficient %d = %d outside [-%d, %d]", i, v, bound, bound)
		}
	}
	return proveRange(pp, pt, coms, op)
}

// proveRange builds the proof without checking the predicate; for values out
// of range the bit decomposition is truncated and the proof does not verify.
func proveRange(pp *PublicParams, pt []int64, coms []kyber.Point, op *commitment.Opening) (*ValidationProof, error) {
	n := pp.HE.N()
	if len(pt) != n || len(coms) != n || op == nil || len(op.Blinds) != n {
		return nil, fmt.Errorf("zkp: block, commitment and opening must have %d entries", n)
	}
	pc := pp.Pedersen
	suite := pc.Suite()
	bound := pp.HE.InputBound
	L := rangeBits(bound)
	offsets := rangeOffsets(bound)
	G, H := pc.G(), pc.H()
	invTop := suite.Scalar().Inv(pc.Scalar(int64(1) << (L - 1)))

	proof := &ValidationProof{
		Bound:      bound,
		Commitment: append([]kyber.Point(nil), coms...),
		Bits:       make([][]kyber.Point, n),
		E0:         make([][]kyber.Scalar, n),
		Z0:         make([][]kyber.Scalar, n),
		Z1:         make([][]kyber.Scalar, n),
	}
	type bitState struct {
		bit          int
		s, k, ef, zf kyber.Scalar
		a0, a1       kyber.Point
	}
	states := make([][]bitState, n)
	for j := 0; j < n; j++ {
		states[j] = make([]bitState, 2*L)
		proof.Bits[j] = make([]kyber.Point, 2*L)
		for d, off := range offsets {
			v := uint64(pt[j] + off)
			acc := suite.Scalar().Zero()
			for i := 0; i < L; i++ {
				st := &states[j][d*L+i]
				st.bit = int(v>>i) & 1
				if i < L-1 {
					st.s = pc.RandomScalar()
					acc.Add(acc, suite.Scalar().Mul(pc.Scalar(int64(1)<<i), st.s))
				} else {
					// Force sum 2^i s_i = r so the bits recompose to C_j.
					st.s = suite.Scalar().Sub(op.Blinds[j], acc)
					st.s.Mul(st.s, invTop)
				}
				D := pc.CommitScalar(pc.Scalar(int64(st.bit)), st.s)
				proof.Bits[j][d*L+i] = D

				// Real branch: A_b = k*H. Simulated branch:
				// A = z*H - e*(D - b'*G).
				st.k = pc.RandomScalar()
				st.ef = pc.RandomScalar()
				st.zf = pc.RandomScalar()
				real := suite.Point().Mul(st.k, H)
				target := D.Clone()
				if st.bit == 0 {
					target.Sub(target, G)
				}
				sim := suite.Point().Mul(st.zf, H)
				sim.Sub(sim, suite.Point().Mul(st.ef, target))
				if st.bit == 0 {
					st.a0, st.a1 = real, sim
				} else {
					st.a0, st.a1 = sim, real
				}
			}
		}
	}

	tr := rangeTranscript(pp, bound, coms, proof.Bits)
	for j := range states {
		for _, st := range states[j] {
			tr.AppendPoints("A", st.a0, st.a1)
		}
	}
	digest, err := tr.Digest()
	if err != nil {
		return nil, err
	}
	e := rangeChallenge(pp, digest)
	for j := range states {
		proof.E0[j] = make([]kyber.Scalar, 2*L)
		proof.Z0[j] = make([]kyber.Scalar, 2*L)
		proof.Z1[j] = make([]kyber.Scalar, 2*L)
		for i, st := range states[j] {
			eReal := suite.Scalar().Sub(e, st.ef)
			zReal := suite.Scalar().Add(st.k, suite.Scalar().Mul(eReal, st.s))
			if st.bit == 0 {
				proof.E0[j][i], proof.Z0[j][i], proof.Z1[j][i] = eReal, zReal, st.zf
			} else {
				proof.E0[j][i], proof.Z0[j][i], proof.Z1[j][i] = st.ef, st.zf, zReal
			}
		}
	}
	proof.Digest = digest
	return proof, nil
}

// VerifyRange checks a ValidationProof for the configured input bound.
func VerifyRange(pp *PublicParams, proof *ValidationProof) error {
	n := pp.HE.N()
	if proof == nil {
		return fmt.Errorf("nil proof")
	}
	bound := pp.HE.InputBound
	if proof.Bound != bound {
		return fmt.Errorf("proof for bound %d, want %d", proof.Bound, bound)
	}
	if len(proof.Digest) != DigestSize {
		return fmt.Errorf("digest length %d", len(proof.Digest))
	}
	L := rangeBits(bound)
	if len(proof.Commitment) != n || len(proof.Bits) != n || len(proof.E0) != n || len(proof.Z0) != n || len(proof.Z1) != n {
		return fmt.Errorf("proof shape mismatch")
	}
	pc := pp.Pedersen
	suite := pc.Suite()
	G, H := pc.G(), pc.H()
	offsets := rangeOffsets(bound)
	e := rangeChallenge(pp, proof.Digest)

	as := make([]kyber.Point, 0, 2*n*2*L)
	for j := 0; j < n; j++ {
		if proof.Commitment[j] == nil {
			return fmt.Errorf("nil commitment at %d", j)
		}
		if len(proof.Bits[j]) != 2*L || len(proof.E0[j]) != 2*L || len(proof.Z0[j]) != 2*L || len(proof.Z1[j]) != 2*L {
			return fmt.Errorf("coefficient %d: proof shape mismatch", j)
		}
		for d, off := range offsets {
			sum := suite.Point().Null()
			for i := 0; i < L; i++ {
				D := proof.Bits[j][d*L+i]
				if D == nil {
					return fmt.Errorf("coefficient %d: nil bit commitment", j)
				}
				sum.Add(sum, suite.Point().Mul(pc.Scalar(int64(1)<<i), D))
			}
			want := suite.Point().Add(proof.Commitment[j], suite.Point().Mul(pc.Scalar(off), G))
			if !sum.Equal(want) {
				return fmt.Errorf("coefficient %d: bits do not recompose", j)
			}
		}
		for i := 0; i < 2*L; i++ {
			D := proof.Bits[j][i]
			e0, z0, z1 := proof.E0[j][i], proof.Z0[j][i], proof.Z1[j][i]
			if e0 == nil || z0 == nil || z1 == nil {
				return fmt.Errorf("coefficient %d: nil response", j)
			}
			e1 := suite.Scalar().Sub(e, e0)
			a0 := suite.Point().Mul(z0, H)
			a0.Sub(a0, suite.Point().Mul(e0, D))
			dg := suite.Point().Sub(D, G)
			a1 := suite.Point().Mul(z1, H)
			a1.Sub(a1, suite.Point().Mul(e1, dg))
			as = append(as, a0, a1)
		}
	}
	tr := rangeTranscript(pp, bound, proof.Commitment, proof.Bits)
	for k := 0; k < len(as); k += 2 {
		tr.AppendPoints("A", as[k], as[k+1])
	}
	digest, err := tr.Digest()
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(digest, proof.Digest) != 1 {
		return fmt.Errorf("challenge mismatch")
	}
	return nil
}
