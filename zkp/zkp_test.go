package zkp

import (
	"testing"

	"github.com/asu-crypto/mario/commitment"
	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/params"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"
)

func testPP(t *testing.T) *PublicParams {
	t.Helper()
	p, err := params.Preset("test")
	require.NoError(t, err)
	pp, err := NewPublicParams(p)
	require.NoError(t, err)
	return pp
}

type encFixture struct {
	pp   *PublicParams
	pk   *he.PublicKey
	pt   []int64
	ct   *he.Ciphertext
	w    *he.Witness
	coms []kyber.Point
	op   *commitment.Opening
}

func newEncFixture(t *testing.T, pp *PublicParams, pt []int64) *encFixture {
	t.Helper()
	_, pk, err := he.KeyGen(pp.HE)
	require.NoError(t, err)
	ct, w, err := he.NewEncryptor(pp.HE, pk).Encrypt(pt)
	require.NoError(t, err)
	coms, op := pp.Pedersen.CommitVector(pt)
	return &encFixture{pp: pp, pk: pk, pt: pt, ct: ct, w: w, coms: coms, op: op}
}

func (f *encFixture) prove(t *testing.T, binding []byte) *EncryptionProof {
	t.Helper()
	proof, err := ProveEncryption(f.pp, f.pk, f.ct, f.pt, f.w, f.coms, f.op, binding)
	require.NoError(t, err)
	return proof
}

func rampBlock(n int, bound int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)*37%(2*bound+1) - bound
	}
	return out
}

func TestEncryptionProofCompleteness(t *testing.T) {
	pp := testPP(t)
	f := newEncFixture(t, pp, rampBlock(pp.HE.N(), pp.HE.InputBound))
	proof := f.prove(t, []byte("round/client/0"))
	require.NoError(t, VerifyEncryption(pp, f.pk, f.ct, proof))
}

func TestEncryptionProofRejectsTampering(t *testing.T) {
	pp := testPP(t)
	f := newEncFixture(t, pp, rampBlock(pp.HE.N(), 100))
	proof := f.prove(t, []byte("ctx"))

	t.Run("ciphertext", func(t *testing.T) {
		ct := f.ct.CopyNew(pp.HE)
		ct.C0.Coeffs[0][3] = (ct.C0.Coeffs[0][3] + pp.HE.Delta()) % pp.HE.Q
		require.Error(t, VerifyEncryption(pp, f.pk, ct, proof))
	})
	t.Run("publicKey", func(t *testing.T) {
		_, other, err := he.KeyGen(pp.HE)
		require.NoError(t, err)
		require.Error(t, VerifyEncryption(pp, other, f.ct, proof))
	})
	t.Run("binding", func(t *testing.T) {
		cp := *proof
		cp.Binding = []byte("other")
		require.Error(t, VerifyEncryption(pp, f.pk, f.ct, &cp))
	})
	t.Run("response", func(t *testing.T) {
		cp := *proof
		cp.Z = append([][]int64(nil), proof.Z...)
		cp.Z[colMessage] = append([]int64(nil), proof.Z[colMessage]...)
		cp.Z[colMessage][0]++
		require.Error(t, VerifyEncryption(pp, f.pk, f.ct, &cp))
	})
	t.Run("commitment", func(t *testing.T) {
		other, _ := pp.Pedersen.CommitVector(f.pt)
		cp := *proof
		cp.Commitment = other
		require.Error(t, VerifyEncryption(pp, f.pk, f.ct, &cp))
	})
	t.Run("malformed", func(t *testing.T) {
		require.Error(t, VerifyEncryption(pp, f.pk, f.ct, nil))
		require.Error(t, VerifyEncryption(pp, f.pk, f.ct, &EncryptionProof{}))
		cp := *proof
		cp.Z = cp.Z[:2]
		require.Error(t, VerifyEncryption(pp, f.pk, f.ct, &cp))
		cp = *proof
		cp.Digest = cp.Digest[:5]
		require.Error(t, VerifyEncryption(pp, f.pk, f.ct, &cp))
	})
}

func TestEncryptionProofWrongWitness(t *testing.T) {
	pp := testPP(t)
	f := newEncFixture(t, pp, rampBlock(pp.HE.N(), 50))

	// Claim a different plaintext for the same ciphertext.
	lie := append([]int64(nil), f.pt...)
	lie[0]++
	coms, op := pp.Pedersen.CommitVector(lie)
	proof, err := ProveEncryption(pp, f.pk, f.ct, lie, f.w, coms, op, nil)
	require.NoError(t, err)
	require.Error(t, VerifyEncryption(pp, f.pk, f.ct, proof))

	// Commitment to one block, encryption of another.
	_, err = ProveEncryption(pp, f.pk, f.ct, f.pt, f.w, coms, op, nil)
	require.Error(t, err)
}

func TestRangeProof(t *testing.T) {
	pp := testPP(t)
	n := pp.HE.N()
	B := pp.HE.InputBound

	edge := make([]int64, n)
	for i := range edge {
		if i%2 == 0 {
			edge[i] = B
		} else {
			edge[i] = -B
		}
	}
	for name, pt := range map[string][]int64{"ramp": rampBlock(n, B), "edges": edge, "zero": make([]int64, n)} {
		coms, op := pp.Pedersen.CommitVector(pt)
		proof, err := ProveRange(pp, pt, coms, op)
		require.NoError(t, err, name)
		require.NoError(t, VerifyRange(pp, proof), name)
	}
}

func TestRangeProofRejectsOutOfRange(t *testing.T) {
	pp := testPP(t)
	n := pp.HE.N()
	B := pp.HE.InputBound

	for _, bad := range []int64{B + 1, -B - 1, 5 * B, -1 << 20} {
		pt := make([]int64, n)
		pt[n/2] = bad
		coms, op := pp.Pedersen.CommitVector(pt)
		_, err := ProveRange(pp, pt, coms, op)
		require.Error(t, err)

		proof, err := proveRange(pp, pt, coms, op)
		require.NoError(t, err)
		require.Error(t, VerifyRange(pp, proof), "value %d", bad)
	}
}

func TestRangeProofRejectsTampering(t *testing.T) {
	pp := testPP(t)
	n := pp.HE.N()
	pt := rampBlock(n, 10)
	coms, op := pp.Pedersen.CommitVector(pt)
	proof, err := ProveRange(pp, pt, coms, op)
	require.NoError(t, err)

	// A commitment to another block does not match the bits.
	other, _ := pp.Pedersen.CommitVector(pt)
	cp := *proof
	cp.Commitment = other
	require.Error(t, VerifyRange(pp, &cp))

	// Forged OR-proof response.
	cp = *proof
	cp.Z0 = append([][]kyber.Scalar(nil), proof.Z0...)
	cp.Z0[1] = append([]kyber.Scalar(nil), proof.Z0[1]...)
	cp.Z0[1][0] = pp.Pedersen.RandomScalar()
	require.Error(t, VerifyRange(pp, &cp))

	cp = *proof
	cp.Bound = 3
	require.Error(t, VerifyRange(pp, &cp))

	cp = *proof
	cp.Bits = cp.Bits[:1]
	require.Error(t, VerifyRange(pp, &cp))
	require.Error(t, VerifyRange(pp, nil))
}

func TestPartialDecryptionProof(t *testing.T) {
	pp := testPP(t)
	hp := pp.HE
	keys, err := he.GenThresholdKeys(hp, 3, 2)
	require.NoError(t, err)
	ct, _, err := he.NewEncryptor(hp, keys.Public).Encrypt(rampBlock(hp.N(), 9))
	require.NoError(t, err)

	committee := []uint64{1, 3}
	key := keys.Shares[2]
	vk := keys.VerificationKey(key.Point)
	lambda, err := he.LagrangeCoefficient(hp.Q, committee, key.Point)
	require.NoError(t, err)
	share, noise, err := he.PartialDecrypt(hp, key, lambda, ct)
	require.NoError(t, err)
	proof, err := ProvePartialDecryption(hp, key, vk, ct, share, noise, []byte("dec"))
	require.NoError(t, err)
	require.NoError(t, VerifyPartialDecryption(hp, vk, ct, share, proof))

	t.Run("share", func(t *testing.T) {
		bad := &he.DecryptionShare{Point: share.Point, Lambda: share.Lambda, Value: he.CopyPoly(hp.RingQ(), share.Value)}
		bad.Value.Coeffs[0][0] = (bad.Value.Coeffs[0][0] + hp.Delta()) % hp.Q
		require.Error(t, VerifyPartialDecryption(hp, vk, ct, bad, proof))
	})
	t.Run("lambda", func(t *testing.T) {
		bad := *share
		bad.Lambda = 1
		require.Error(t, VerifyPartialDecryption(hp, vk, ct, &bad, proof))
	})
	t.Run("verificationKey", func(t *testing.T) {
		require.Error(t, VerifyPartialDecryption(hp, keys.VerificationKey(1), ct, share, proof))
	})
	t.Run("ciphertext", func(t *testing.T) {
		other, _, err := he.NewEncryptor(hp, keys.Public).Encrypt(rampBlock(hp.N(), 9))
		require.NoError(t, err)
		require.Error(t, VerifyPartialDecryption(hp, vk, other, share, proof))
	})
	t.Run("wrongKey", func(t *testing.T) {
		// A share computed with another server's key cannot be proven.
		wrong := &he.KeyShare{Point: key.Point, Value: keys.Shares[0].Value, Noise: key.Noise}
		forged, noise, err := he.PartialDecrypt(hp, wrong, lambda, ct)
		require.NoError(t, err)
		p, err := ProvePartialDecryption(hp, wrong, vk, ct, forged, noise, nil)
		require.NoError(t, err)
		require.Error(t, VerifyPartialDecryption(hp, vk, ct, forged, p))
	})
}

func TestChallenge(t *testing.T) {
	pp := testPP(t)
	hp := pp.HE
	ch, err := DeriveChallenge([]byte("digest"), hp.N(), hp.ChallengeWeight)
	require.NoError(t, err)
	require.Len(t, ch.Positions, hp.ChallengeWeight)
	again, err := DeriveChallenge([]byte("digest"), hp.N(), hp.ChallengeWeight)
	require.NoError(t, err)
	require.Equal(t, ch, again)

	seen := map[int]bool{}
	for _, p := range ch.Positions {
		require.False(t, seen[p])
		seen[p] = true
	}

	x := rampBlock(hp.N(), 1000)
	viaInt := ch.MulInt(x)
	viaPoly := he.CenteredCoeffs(hp.RingQ(), ch.MulPoly(hp.RingQ(), he.PolyFromCentered(hp.RingQ(), x)))
	require.Equal(t, viaInt, viaPoly)

	// Against the generic ring product.
	cpoly := make([]int64, hp.N())
	for k, p := range ch.Positions {
		cpoly[p] = int64(ch.Signs[k])
	}
	prod := hp.RingQ().NewPoly()
	he.MulPoly(hp.RingQ(), he.PolyFromCentered(hp.RingQ(), cpoly), he.PolyFromCentered(hp.RingQ(), x), prod)
	require.Equal(t, viaInt, he.CenteredCoeffs(hp.RingQ(), prod))

	_, err = DeriveChallenge([]byte("d"), 16, 0)
	require.Error(t, err)
}

func TestTranscript(t *testing.T) {
	pp := testPP(t)
	mk := func(b string) []byte {
		tr := NewTranscript("test")
		tr.AppendBytes("a", []byte(b))
		tr.AppendPolys("p", pp.HE.CRS())
		d, err := tr.Digest()
		require.NoError(t, err)
		return d
	}
	require.Equal(t, mk("x"), mk("x"))
	require.NotEqual(t, mk("x"), mk("y"))

	tr := NewTranscript("test")
	tr.AppendPolys("p", nil)
	_, err := tr.Digest()
	require.Error(t, err)
}
