package commitment

import (
	"testing"

	"github.com/asu-crypto/mario/params"
	"github.com/tuneinsight/lattigo/v4/ring"
	"github.com/tuneinsight/lattigo/v4/utils"
)

func testRing(t *testing.T) *ring.Ring {
	t.Helper()
	p, err := params.Preset("test")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	ringQ, err := ring.NewRing(p.N(), []uint64{p.Q})
	if err != nil {
		t.Fatalf("ring: %v", err)
	}
	return ringQ
}

func randPoly(r *ring.Ring, prng utils.PRNG) *ring.Poly {
	p := r.NewPoly()
	us := ring.NewUniformSampler(prng, r)
	us.Read(p)
	return p
}

func TestApplyVerify(t *testing.T) {
	ringQ := testRing(t)
	prng, err := utils.NewPRNG()
	if err != nil {
		t.Fatalf("prng: %v", err)
	}

	vec := Vector{randPoly(ringQ, prng), randPoly(ringQ, prng), randPoly(ringQ, prng)}
	A := Matrix{
		{randPoly(ringQ, prng), Constant(ringQ, 1), nil},
		{randPoly(ringQ, prng), nil, randPoly(ringQ, prng)},
	}

	img, err := Apply(ringQ, A, vec)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := Verify(ringQ, A, vec, img); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Tamper a coefficient and expect verification to fail.
	img[1].Coeffs[0][0] = (img[1].Coeffs[0][0] + 1) % ringQ.Modulus[0]
	if err := Verify(ringQ, A, vec, img); err == nil {
		t.Fatalf("verify should fail on tampered image")
	}
}

func TestApplyIdentityColumn(t *testing.T) {
	ringQ := testRing(t)
	prng, err := utils.NewPRNG()
	if err != nil {
		t.Fatalf("prng: %v", err)
	}
	v := randPoly(ringQ, prng)
	img, err := Apply(ringQ, Matrix{{Constant(ringQ, 1)}}, Vector{v})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !ringQ.Equal(img[0], v) {
		t.Fatalf("identity map changed its input")
	}
}

func TestApplyDimensionMismatch(t *testing.T) {
	ringQ := testRing(t)
	vec := Vector{ringQ.NewPoly(), ringQ.NewPoly()}
	if _, err := Apply(ringQ, Matrix{{ringQ.NewPoly()}}, vec); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
	if _, err := Apply(ringQ, Matrix{{nil, nil}, {nil}}, vec); err == nil {
		t.Fatalf("expected ragged matrix error")
	}
	if _, err := Apply(ringQ, Matrix{{nil}}, Vector{nil}); err == nil {
		t.Fatalf("expected nil vector error")
	}
}
