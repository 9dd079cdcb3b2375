package zkp

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/asu-crypto/mario/commitment"
	"github.com/asu-crypto/mario/he"
	"github.com/tuneinsight/lattigo/v4/ring"
)

// ErrRejectionLimit is returned when rejection sampling did not accept within
// the configured number of attempts.
var ErrRejectionLimit = errors.New("zkp: rejection sampling attempts exhausted")

// Column describes one witness polynomial of a linear relation.
type Column struct {
	Name string
	// Bound is the L-infinity bound of the witness. Zero marks an unbounded
	// witness, masked uniformly mod q.
	Bound int64
}

// Relation is the public statement Matrix · x = Image over R_q with a short
// (or partly uniform) witness x.
type Relation struct {
	Matrix  commitment.Matrix
	Image   commitment.Vector
	Columns []Column
}

func (rel *Relation) boundedCols() int {
	k := 0
	for _, c := range rel.Columns {
		if c.Bound > 0 {
			k++
		}
	}
	return k
}

func (rel *Relation) validate(hp *he.Parameters) error {
	if len(rel.Matrix) == 0 || len(rel.Matrix) != len(rel.Image) {
		return fmt.Errorf("relation: %d rows for %d image entries", len(rel.Matrix), len(rel.Image))
	}
	for i, row := range rel.Matrix {
		if len(row) != len(rel.Columns) {
			return fmt.Errorf("relation: row %d has %d columns, want %d", i, len(row), len(rel.Columns))
		}
		for j, e := range row {
			if e == nil {
				continue
			}
			if err := hp.CheckPoly(e); err != nil {
				return fmt.Errorf("relation: entry (%d,%d): %w", i, j, err)
			}
		}
		if err := hp.CheckPoly(rel.Image[i]); err != nil {
			return fmt.Errorf("relation: image %d: %w", i, err)
		}
	}
	return nil
}

func (rel *Relation) sampleMasks(hp *he.Parameters, smp *he.Sampler) ([][]int64, error) {
	k := rel.boundedCols()
	masks := make([][]int64, len(rel.Columns))
	for j, c := range rel.Columns {
		if c.Bound == 0 {
			masks[j] = he.CenteredCoeffs(hp.RingQ(), smp.Uniform())
			continue
		}
		y, err := smp.BoundedInts(hp.N(), hp.MaskBound(c.Bound, k))
		if err != nil {
			return nil, err
		}
		masks[j] = y
	}
	return masks, nil
}

func (rel *Relation) apply(hp *he.Parameters, cols [][]int64) (commitment.Vector, error) {
	vec := make(commitment.Vector, len(cols))
	for j, c := range cols {
		vec[j] = he.PolyFromCentered(hp.RingQ(), c)
	}
	return commitment.Apply(hp.RingQ(), rel.Matrix, vec)
}

// respond computes z = y + c*x. Bounded columns stay exact integers so they
// can be reused across groups; unbounded columns are reduced mod q.
func (rel *Relation) respond(hp *he.Parameters, ch *Challenge, masks, wit [][]int64) [][]int64 {
	q := int64(hp.Q)
	z := make([][]int64, len(rel.Columns))
	for j, c := range rel.Columns {
		cx := ch.MulInt(wit[j])
		z[j] = make([]int64, len(cx))
		for i := range cx {
			v := masks[j][i] + cx[i]
			if c.Bound == 0 {
				v = centerMod(v, q)
			}
			z[j][i] = v
		}
	}
	return z
}

func (rel *Relation) accept(hp *he.Parameters, z [][]int64) bool {
	k := rel.boundedCols()
	for j, c := range rel.Columns {
		if c.Bound == 0 {
			continue
		}
		limit := hp.ResponseBound(c.Bound, k)
		for _, v := range z[j] {
			if v > limit || v < -limit {
				return false
			}
		}
	}
	return true
}

// checkResponses validates the shape and norms of received responses.
func (rel *Relation) checkResponses(hp *he.Parameters, z [][]int64) error {
	if len(z) != len(rel.Columns) {
		return fmt.Errorf("responses: got %d columns, want %d", len(z), len(rel.Columns))
	}
	half := int64(hp.Q / 2)
	for j, c := range rel.Columns {
		if len(z[j]) != hp.N() {
			return fmt.Errorf("responses: column %s has %d coefficients", c.Name, len(z[j]))
		}
		if c.Bound != 0 {
			continue
		}
		for _, v := range z[j] {
			if v > half || v < -half {
				return fmt.Errorf("responses: column %s not reduced", c.Name)
			}
		}
	}
	if !rel.accept(hp, z) {
		return fmt.Errorf("responses: norm bound exceeded")
	}
	return nil
}

// reconstruct recomputes the prover's first message A·z - c·Image.
func (rel *Relation) reconstruct(hp *he.Parameters, ch *Challenge, z [][]int64) (commitment.Vector, error) {
	w, err := rel.apply(hp, z)
	if err != nil {
		return nil, err
	}
	ringQ := hp.RingQ()
	for i := range w {
		ringQ.Sub(w[i], ch.MulPoly(ringQ, rel.Image[i]), w[i])
	}
	return w, nil
}

// linkHook extends a linear proof with a second sigma protocol sharing its
// challenge and some of its responses.
type linkHook interface {
	commit(tr *Transcript, masks [][]int64) error
	respond(ch *Challenge)
}

type proofCore struct {
	Digest []byte
	Z      [][]int64
}

func proveLinear(hp *he.Parameters, rel *Relation, wit []*ring.Poly, base func() *Transcript, link linkHook) (*proofCore, error) {
	if err := rel.validate(hp); err != nil {
		return nil, err
	}
	if len(wit) != len(rel.Columns) {
		return nil, fmt.Errorf("witness: got %d columns, want %d", len(wit), len(rel.Columns))
	}
	witInts := make([][]int64, len(wit))
	for j, p := range wit {
		if err := hp.CheckPoly(p); err != nil {
			return nil, fmt.Errorf("witness %s: %w", rel.Columns[j].Name, err)
		}
		if b := rel.Columns[j].Bound; b > 0 {
			if err := he.CheckBound(hp.RingQ(), p, b, rel.Columns[j].Name); err != nil {
				return nil, err
			}
		}
		witInts[j] = he.CenteredCoeffs(hp.RingQ(), p)
	}
	smp, err := he.NewSampler(hp)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < hp.MaxAttempts; attempt++ {
		masks, err := rel.sampleMasks(hp, smp)
		if err != nil {
			return nil, err
		}
		w, err := rel.apply(hp, masks)
		if err != nil {
			return nil, err
		}
		tr := base()
		tr.AppendPolys("w", w...)
		if link != nil {
			if err := link.commit(tr, masks); err != nil {
				return nil, err
			}
		}
		digest, err := tr.Digest()
		if err != nil {
			return nil, err
		}
		ch, err := DeriveChallenge(digest, hp.N(), hp.ChallengeWeight)
		if err != nil {
			return nil, err
		}
		z := rel.respond(hp, ch, masks, witInts)
		if !rel.accept(hp, z) {
			continue
		}
		if link != nil {
			link.respond(ch)
		}
		return &proofCore{Digest: digest, Z: z}, nil
	}
	return nil, ErrRejectionLimit
}

func verifyLinear(hp *he.Parameters, rel *Relation, core *proofCore, base func() *Transcript, link func(tr *Transcript, ch *Challenge) error) error {
	if err := rel.validate(hp); err != nil {
		return err
	}
	if len(core.Digest) != DigestSize {
		return fmt.Errorf("digest length %d", len(core.Digest))
	}
	if err := rel.checkResponses(hp, core.Z); err != nil {
		return err
	}
	ch, err := DeriveChallenge(core.Digest, hp.N(), hp.ChallengeWeight)
	if err != nil {
		return err
	}
	w, err := rel.reconstruct(hp, ch, core.Z)
	if err != nil {
		return err
	}
	tr := base()
	tr.AppendPolys("w", w...)
	if link != nil {
		if err := link(tr, ch); err != nil {
			return err
		}
	}
	digest, err := tr.Digest()
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(digest, core.Digest) != 1 {
		return fmt.Errorf("challenge mismatch")
	}
	return nil
}

func centerMod(v, q int64) int64 {
	v %= q
	if v < 0 {
		v += q
	}
	if v > q/2 {
		v -= q
	}
	return v
}
