package zkp

import (
	"fmt"

	"github.com/asu-crypto/mario/commitment"
	"github.com/asu-crypto/mario/he"
	"github.com/tuneinsight/lattigo/v4/ring"
	"go.dedis.ch/kyber/v3"
)

// EncryptionProof shows that a ciphertext is a well-formed encryption, under
// the public key, of the block opened by Commitment.
type EncryptionProof struct {
	Binding    []byte
	Commitment []kyber.Point
	Digest     []byte
	// Z holds the responses for (u, e1, e2, m).
	Z [][]int64
	// ZR holds the Pedersen blinding responses, one per coefficient.
	ZR []kyber.Scalar
}

const colMessage = 3

func encryptionRelation(hp *he.Parameters, pk *he.PublicKey, ct *he.Ciphertext) *Relation {
	ringQ := hp.RingQ()
	one := commitment.Constant(ringQ, 1)
	return &Relation{
		Matrix: commitment.Matrix{
			{pk.P0, one, nil, commitment.Constant(ringQ, hp.Delta())},
			{pk.P1, nil, one, nil},
		},
		Image: commitment.Vector{ct.C0, ct.C1},
		Columns: []Column{
			{Name: "u", Bound: 1},
			{Name: "e1", Bound: hp.ErrorBound},
			{Name: "e2", Bound: hp.ErrorBound},
			{Name: "m", Bound: hp.InputBound},
		},
	}
}

func encryptionTranscript(pp *PublicParams, pk *he.PublicKey, ct *he.Ciphertext, binding []byte, coms []kyber.Point) func() *Transcript {
	return func() *Transcript {
		tr := NewTranscript("mario/encryption/v1")
		tr.AppendBytes("params", pp.digest)
		tr.AppendPolys("pk", pk.P0, pk.P1)
		tr.AppendPolys("ct", ct.C0, ct.C1)
		tr.AppendBytes("binding", binding)
		tr.AppendPoints("commitment", coms...)
		return tr
	}
}

type pedersenLink struct {
	pc   *commitment.Pedersen
	op   *commitment.Opening
	yr   []kyber.Scalar
	zr   []kyber.Scalar
	size int
}

func (l *pedersenLink) commit(tr *Transcript, masks [][]int64) error {
	ym := masks[colMessage]
	l.yr = make([]kyber.Scalar, l.size)
	W := make([]kyber.Point, l.size)
	for j := 0; j < l.size; j++ {
		l.yr[j] = l.pc.RandomScalar()
		W[j] = l.pc.Commit(ym[j], l.yr[j])
	}
	tr.AppendPoints("W", W...)
	return nil
}

func (l *pedersenLink) respond(ch *Challenge) {
	group := l.pc.Suite()
	cr := ch.MulScalars(group, l.op.Blinds)
	l.zr = make([]kyber.Scalar, l.size)
	for j := range cr {
		l.zr[j] = group.Scalar().Add(l.yr[j], cr[j])
	}
}

// ProveEncryption proves that ct = Enc(pk, pt; w) and that coms opens to pt
// under op. The proof is bound to the binding context.
func ProveEncryption(pp *PublicParams, pk *he.PublicKey, ct *he.Ciphertext, pt []int64, w *he.Witness, coms []kyber.Point, op *commitment.Opening, binding []byte) (*EncryptionProof, error) {
	hp := pp.HE
	n := hp.N()
	if pk == nil || w == nil {
		return nil, fmt.Errorf("zkp: nil public key or witness")
	}
	if err := hp.CheckCiphertext(ct); err != nil {
		return nil, fmt.Errorf("zkp: %w", err)
	}
	if len(pt) != n || len(coms) != n || op == nil || len(op.Values) != n || len(op.Blinds) != n {
		return nil, fmt.Errorf("zkp: block, commitment and opening must have %d entries", n)
	}
	for i, v := range op.Values {
		if v != pt[i] {
			return nil, fmt.Errorf("zkp: opening does not match plaintext at %d", i)
		}
	}
	rel := encryptionRelation(hp, pk, ct)
	wit := []*ring.Poly{w.U, w.E1, w.E2, he.PolyFromCentered(hp.RingQ(), pt)}
	link := &pedersenLink{pc: pp.Pedersen, op: op, size: n}
	core, err := proveLinear(hp, rel, wit, encryptionTranscript(pp, pk, ct, binding, coms), link)
	if err != nil {
		return nil, fmt.Errorf("zkp: encryption proof: %w", err)
	}
	return &EncryptionProof{
		Binding:    append([]byte(nil), binding...),
		Commitment: append([]kyber.Point(nil), coms...),
		Digest:     core.Digest,
		Z:          core.Z,
		ZR:         link.zr,
	}, nil
}

// VerifyEncryption checks an EncryptionProof against ct and pk.
func VerifyEncryption(pp *PublicParams, pk *he.PublicKey, ct *he.Ciphertext, proof *EncryptionProof) error {
	hp := pp.HE
	n := hp.N()
	if proof == nil || pk == nil {
		return fmt.Errorf("nil proof or public key")
	}
	if err := hp.CheckCiphertext(ct); err != nil {
		return err
	}
	if err := hp.CheckPoly(pk.P0); err != nil {
		return fmt.Errorf("pk: %w", err)
	}
	if err := hp.CheckPoly(pk.P1); err != nil {
		return fmt.Errorf("pk: %w", err)
	}
	if len(proof.Commitment) != n || len(proof.ZR) != n {
		return fmt.Errorf("commitment or blinding responses have wrong length")
	}
	for j := 0; j < n; j++ {
		if proof.Commitment[j] == nil || proof.ZR[j] == nil {
			return fmt.Errorf("nil commitment element at %d", j)
		}
	}
	rel := encryptionRelation(hp, pk, ct)
	core := &proofCore{Digest: proof.Digest, Z: proof.Z}
	pc := pp.Pedersen
	group := pc.Suite()
	link := func(tr *Transcript, ch *Challenge) error {
		cC := ch.MulPoints(group, proof.Commitment)
		W := make([]kyber.Point, n)
		for j := 0; j < n; j++ {
			w := pc.CommitScalar(pc.Scalar(proof.Z[colMessage][j]), proof.ZR[j])
			W[j] = w.Sub(w, cC[j])
		}
		tr.AppendPoints("W", W...)
		return nil
	}
	return verifyLinear(hp, rel, core, encryptionTranscript(pp, pk, ct, proof.Binding, proof.Commitment), link)
}
