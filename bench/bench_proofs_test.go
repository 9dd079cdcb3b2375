package bench

import (
	"context"
	"fmt"
	"testing"

	"github.com/asu-crypto/mario/aggregator"
	"github.com/asu-crypto/mario/client"
	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/params"
	"github.com/asu-crypto/mario/protocol"
	"github.com/asu-crypto/mario/zkp"
)

func benchmarkPublicParams(b *testing.B, preset string) *zkp.PublicParams {
	b.Helper()
	p, err := params.Preset(preset)
	if err != nil {
		b.Fatal(err)
	}
	pp, err := zkp.NewPublicParams(p)
	if err != nil {
		b.Fatal(err)
	}
	return pp
}

func BenchmarkClientEncryptBlock(b *testing.B) {
	for _, preset := range []string{"test", "demo"} {
		b.Run(preset, func(b *testing.B) {
			pp := benchmarkPublicParams(b, preset)
			_, pk, err := he.KeyGen(pp.HE)
			if err != nil {
				b.Fatal(err)
			}
			c, err := client.New(client.Config{ID: "bench", Params: pp, PublicKey: pk})
			if err != nil {
				b.Fatal(err)
			}
			raw := make([]int64, pp.HE.N())
			round := protocol.NewRoundID()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.Submit(round, raw); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkVerifyRound(b *testing.B) {
	pp := benchmarkPublicParams(b, "test")
	_, pk, err := he.KeyGen(pp.HE)
	if err != nil {
		b.Fatal(err)
	}
	id := protocol.NewRoundID()
	var subs []*protocol.SubmissionRecord
	for i := 0; i < 8; i++ {
		c, err := client.New(client.Config{ID: protocol.ClientID(fmt.Sprintf("c%d", i)), Params: pp, PublicKey: pk})
		if err != nil {
			b.Fatal(err)
		}
		rec, err := c.Submit(id, []int64{int64(i), 1, 2})
		if err != nil {
			b.Fatal(err)
		}
		subs = append(subs, rec)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, err := aggregator.NewRound(id, aggregator.Config{Params: pp, PublicKey: pk})
		if err != nil {
			b.Fatal(err)
		}
		for _, rec := range subs {
			if err := r.Submit(rec); err != nil {
				b.Fatal(err)
			}
		}
		if _, err := r.CloseAndVerify(context.Background()); err != nil {
			b.Fatal(err)
		}
		if _, err := r.Aggregate(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPartialDecryptionProof(b *testing.B) {
	pp := benchmarkPublicParams(b, "test")
	hp := pp.HE
	keys, err := he.GenThresholdKeys(hp, 3, 2)
	if err != nil {
		b.Fatal(err)
	}
	ct, _, err := he.NewEncryptor(hp, keys.Public).Encrypt([]int64{1, 2, 3})
	if err != nil {
		b.Fatal(err)
	}
	lambda, err := he.LagrangeCoefficient(hp.Q, []uint64{1, 2}, 1)
	if err != nil {
		b.Fatal(err)
	}
	binding := protocol.ServerBinding(protocol.NewRoundID(), 1, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		share, noise, err := he.PartialDecrypt(hp, keys.Shares[0], lambda, ct)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := zkp.ProvePartialDecryption(hp, keys.Shares[0], keys.Verification[0], ct, share, noise, binding); err != nil {
			b.Fatal(err)
		}
	}
}
