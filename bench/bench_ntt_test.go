package bench

import (
	"testing"

	"github.com/asu-crypto/mario/he"
)

func BenchmarkMulPoly(b *testing.B) {
	hp := benchmarkParams(b, "default")
	smp, err := he.NewSampler(hp)
	if err != nil {
		b.Fatal(err)
	}
	x := smp.Uniform()
	y, err := smp.Ternary()
	if err != nil {
		b.Fatal(err)
	}
	out := hp.RingQ().NewPoly()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		he.MulPoly(hp.RingQ(), x, y, out)
	}
}

func BenchmarkEncrypt(b *testing.B) {
	hp := benchmarkParams(b, "default")
	_, pk, err := he.KeyGen(hp)
	if err != nil {
		b.Fatal(err)
	}
	enc := he.NewEncryptor(hp, pk)
	pt := make([]int64, hp.N())
	for i := range pt {
		pt[i] = int64(i) % hp.InputBound
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := enc.Encrypt(pt); err != nil {
			b.Fatal(err)
		}
	}
}
