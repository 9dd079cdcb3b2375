package commitment

import (
	"fmt"

	"github.com/asu-crypto/mario/params"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
)

// Pedersen holds the generators G (the group base point) and H of a Pedersen
// commitment scheme over edwards25519. H is derived from the public setup so
// nobody knows its discrete log in base G.
type Pedersen struct {
	suite *edwards25519.SuiteEd25519
	h     kyber.Point
}

// Opening is the secret opening of a vector commitment.
type Opening struct {
	Values []int64
	Blinds []kyber.Scalar
}

// NewPedersen derives the generators from the parameter set.
func NewPedersen(p params.Params) (*Pedersen, error) {
	seed, err := p.DeriveSeed("pedersen")
	if err != nil {
		return nil, err
	}
	suite := edwards25519.NewBlakeSHA256Ed25519()
	h := suite.Point().Pick(suite.XOF(seed))
	return &Pedersen{suite: suite, h: h}, nil
}

// Suite returns the group suite.
func (pc *Pedersen) Suite() *edwards25519.SuiteEd25519 { return pc.suite }

// G returns the first generator.
func (pc *Pedersen) G() kyber.Point { return pc.suite.Point().Base() }

// H returns the blinding generator.
func (pc *Pedersen) H() kyber.Point { return pc.h.Clone() }

// Scalar embeds a signed integer into the scalar field.
func (pc *Pedersen) Scalar(v int64) kyber.Scalar {
	if v < 0 {
		s := pc.suite.Scalar().SetInt64(-v)
		return s.Neg(s)
	}
	return pc.suite.Scalar().SetInt64(v)
}

// RandomScalar samples a uniform scalar from the system randomness.
func (pc *Pedersen) RandomScalar() kyber.Scalar {
	return pc.suite.Scalar().Pick(pc.suite.RandomStream())
}

// CommitScalar returns v*G + r*H.
func (pc *Pedersen) CommitScalar(v, r kyber.Scalar) kyber.Point {
	vg := pc.suite.Point().Mul(v, nil)
	rh := pc.suite.Point().Mul(r, pc.h)
	return vg.Add(vg, rh)
}

// Commit returns v*G + r*H for a signed integer v.
func (pc *Pedersen) Commit(v int64, r kyber.Scalar) kyber.Point {
	return pc.CommitScalar(pc.Scalar(v), r)
}

// CommitVector commits to each entry of values with fresh blinding.
func (pc *Pedersen) CommitVector(values []int64) ([]kyber.Point, *Opening) {
	coms := make([]kyber.Point, len(values))
	op := &Opening{Values: append([]int64(nil), values...), Blinds: make([]kyber.Scalar, len(values))}
	for i, v := range values {
		op.Blinds[i] = pc.RandomScalar()
		coms[i] = pc.Commit(v, op.Blinds[i])
	}
	return coms, op
}

// VerifyOpening checks that coms opens to op.
func (pc *Pedersen) VerifyOpening(coms []kyber.Point, op *Opening) error {
	if op == nil || len(coms) != len(op.Values) || len(op.Blinds) != len(op.Values) {
		return fmt.Errorf("opening shape mismatch")
	}
	for i := range coms {
		if coms[i] == nil || op.Blinds[i] == nil || !coms[i].Equal(pc.Commit(op.Values[i], op.Blinds[i])) {
			return fmt.Errorf("opening mismatch at %d", i)
		}
	}
	return nil
}

// EqualPoints reports whether two commitment vectors are identical.
func EqualPoints(a, b []kyber.Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] == nil || b[i] == nil || !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// AppendPoints appends the canonical encodings of pts to dst.
func AppendPoints(dst []byte, pts ...kyber.Point) ([]byte, error) {
	for i, p := range pts {
		if p == nil {
			return nil, fmt.Errorf("nil point at %d", i)
		}
		b, err := p.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal point %d: %w", i, err)
		}
		dst = append(dst, b...)
	}
	return dst, nil
}
