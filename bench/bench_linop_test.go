package bench

import (
	"testing"

	"github.com/asu-crypto/mario/commitment"
	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/params"
	"github.com/tuneinsight/lattigo/v4/ring"
)

func benchmarkParams(b *testing.B, preset string) *he.Parameters {
	b.Helper()
	p, err := params.Preset(preset)
	if err != nil {
		b.Fatal(err)
	}
	hp, err := he.NewParameters(p)
	if err != nil {
		b.Fatal(err)
	}
	return hp
}

func BenchmarkApply(b *testing.B) {
	hp := benchmarkParams(b, "default")
	smp, err := he.NewSampler(hp)
	if err != nil {
		b.Fatal(err)
	}
	A := make(commitment.Matrix, 2)
	for i := range A {
		A[i] = make([]*ring.Poly, 4)
		for j := range A[i] {
			A[i][j] = smp.Uniform()
		}
	}
	vec := make(commitment.Vector, 4)
	for j := range vec {
		vec[j] = smp.Error()
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := commitment.Apply(hp.RingQ(), A, vec); err != nil {
			b.Fatal(err)
		}
	}
}
