package verifier

import (
	"testing"

	"github.com/asu-crypto/mario/client"
	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/params"
	"github.com/asu-crypto/mario/protocol"
	"github.com/asu-crypto/mario/zkp"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	pp    *zkp.PublicParams
	keys  *he.ThresholdKeys
	round protocol.RoundID
	rec   *protocol.SubmissionRecord
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p, err := params.Preset("test")
	require.NoError(t, err)
	pp, err := zkp.NewPublicParams(p)
	require.NoError(t, err)
	keys, err := he.GenThresholdKeys(pp.HE, 3, 2)
	require.NoError(t, err)
	c, err := client.New(client.Config{ID: "c1", Params: pp, PublicKey: keys.Public})
	require.NoError(t, err)
	round := protocol.NewRoundID()
	rec, err := c.Submit(round, []int64{1, -2, 3})
	require.NoError(t, err)
	return &fixture{pp: pp, keys: keys, round: round, rec: rec}
}

func TestStrictAcceptsHonestBlock(t *testing.T) {
	f := newFixture(t)
	v := NewStrict(f.pp)
	binding := protocol.ClientBinding(f.round, "c1", 0)
	require.NoError(t, v.VerifyBlock(f.keys.Public, f.rec.Ciphertexts[0], f.rec.Proofs[0], binding))

	require.True(t, VerifyEncryption(f.pp, f.rec.Ciphertexts[0], f.rec.Proofs[0].Encryption, f.keys.Public))
	require.True(t, VerifyValidation(f.rec.Proofs[0].Validation, f.pp))
}

func TestStrictRejects(t *testing.T) {
	f := newFixture(t)
	v := NewStrict(f.pp)
	ct := f.rec.Ciphertexts[0]
	bundle := f.rec.Proofs[0]
	binding := protocol.ClientBinding(f.round, "c1", 0)

	require.ErrorIs(t, v.VerifyBlock(f.keys.Public, ct, bundle, protocol.ClientBinding(f.round, "c2", 0)), ErrBinding)
	require.Error(t, v.VerifyBlock(f.keys.Public, ct, protocol.ProofBundle{Encryption: bundle.Encryption}, binding))
	require.Error(t, v.VerifyBlock(f.keys.Public, nil, bundle, binding))

	// Validation proof over a different commitment.
	other, op := f.pp.Pedersen.CommitVector(make([]int64, f.pp.HE.N()))
	val, err := zkp.ProveRange(f.pp, make([]int64, f.pp.HE.N()), other, op)
	require.NoError(t, err)
	require.Error(t, v.VerifyBlock(f.keys.Public, ct, protocol.ProofBundle{Encryption: bundle.Encryption, Validation: val}, binding))

	tampered := ct.CopyNew(f.pp.HE)
	tampered.C1.Coeffs[0][0] = (tampered.C1.Coeffs[0][0] + 1) % f.pp.HE.Q
	require.Error(t, v.VerifyBlock(f.keys.Public, tampered, bundle, binding))
	require.False(t, VerifyEncryption(f.pp, tampered, bundle.Encryption, f.keys.Public))
}

func TestPureFunctionsFailClosed(t *testing.T) {
	f := newFixture(t)
	ct := f.rec.Ciphertexts[0]
	bundle := f.rec.Proofs[0]

	require.False(t, VerifyEncryption(nil, ct, bundle.Encryption, f.keys.Public))
	require.False(t, VerifyEncryption(f.pp, ct, nil, f.keys.Public))
	require.False(t, VerifyEncryption(f.pp, &he.Ciphertext{}, bundle.Encryption, f.keys.Public))
	require.False(t, VerifyValidation(nil, f.pp))
	require.False(t, VerifyValidation(bundle.Validation, nil))
	require.False(t, VerifyValidation(&zkp.ValidationProof{Bound: f.pp.HE.InputBound}, f.pp))
	require.False(t, VerifyPartialDecryption(f.pp, nil, ct, f.keys.Verification[0], nil))
	require.False(t, VerifyPartialDecryption(nil, nil, nil, nil, nil))
}

func TestPartialDecryptionPolicies(t *testing.T) {
	f := newFixture(t)
	hp := f.pp.HE
	ct := f.rec.Ciphertexts[0]
	key := f.keys.Shares[0]
	vk := f.keys.Verification[0]
	lambda, err := he.LagrangeCoefficient(hp.Q, []uint64{1, 2}, key.Point)
	require.NoError(t, err)
	share, noise, err := he.PartialDecrypt(hp, key, lambda, ct)
	require.NoError(t, err)
	binding := protocol.ServerBinding(f.round, 1, 0)
	proof, err := zkp.ProvePartialDecryption(hp, key, vk, ct, share, noise, binding)
	require.NoError(t, err)

	strict := NewStrict(f.pp)
	require.NoError(t, strict.VerifyShare(vk, ct, share, proof, binding))
	require.True(t, VerifyPartialDecryption(f.pp, share, ct, vk, proof))
	require.ErrorIs(t, strict.VerifyShare(vk, ct, share, proof, protocol.ServerBinding(f.round, 2, 0)), ErrBinding)
	require.Error(t, strict.VerifyShare(vk, ct, share, nil, binding))
	require.Error(t, strict.VerifyShare(f.keys.Verification[1], ct, share, proof, binding))

	semi := NewSemiHonest(hp)
	require.NoError(t, semi.VerifyShare(vk, ct, share, nil, nil))
	require.Error(t, semi.VerifyShare(f.keys.Verification[1], ct, share, nil, nil))
	require.Equal(t, "semi-honest", semi.Name())
	require.Equal(t, "strict", strict.Name())
}

func TestSemiHonestSkipsProofs(t *testing.T) {
	f := newFixture(t)
	semi := NewSemiHonest(f.pp.HE)
	require.NoError(t, semi.VerifyBlock(f.keys.Public, f.rec.Ciphertexts[0], protocol.ProofBundle{}, nil))
	require.Error(t, semi.VerifyBlock(f.keys.Public, &he.Ciphertext{}, protocol.ProofBundle{}, nil))
}
