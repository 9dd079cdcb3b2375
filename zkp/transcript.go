package zkp

import (
	"encoding/binary"
	"fmt"

	"github.com/asu-crypto/mario/commitment"
	"github.com/asu-crypto/mario/he"
	"github.com/tuneinsight/lattigo/v4/ring"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/crypto/sha3"
)

// DigestSize is the length of Fiat-Shamir digests carried in proofs.
const DigestSize = 32

// Label binds a public name to an encoded byte slice for Fiat-Shamir.
type Label struct {
	Name string
	Data []byte
}

// Transcript accumulates the public inputs and prover messages of one proof
// in a deterministic order. Every label is length-prefixed.
type Transcript struct {
	domain string
	labels []Label
	err    error
}

// NewTranscript starts a transcript for the given domain separator.
func NewTranscript(domain string) *Transcript {
	return &Transcript{domain: domain}
}

// AppendBytes adds a raw label.
func (t *Transcript) AppendBytes(name string, data []byte) {
	t.labels = append(t.labels, Label{Name: name, Data: append([]byte(nil), data...)})
}

// AppendUint64 adds an integer label.
func (t *Transcript) AppendUint64(name string, v uint64) {
	t.AppendBytes(name, binary.LittleEndian.AppendUint64(nil, v))
}

// AppendPolys adds the little-endian coefficients of polys under one label.
func (t *Transcript) AppendPolys(name string, polys ...*ring.Poly) {
	var buf []byte
	for i, p := range polys {
		if p == nil || len(p.Coeffs) == 0 {
			t.fail(fmt.Errorf("%s: nil polynomial at %d", name, i))
			return
		}
		buf = he.AppendPoly(buf, p)
	}
	t.AppendBytes(name, buf)
}

// AppendPoints adds group elements under one label.
func (t *Transcript) AppendPoints(name string, pts ...kyber.Point) {
	buf, err := commitment.AppendPoints(nil, pts...)
	if err != nil {
		t.fail(fmt.Errorf("%s: %w", name, err))
		return
	}
	t.AppendBytes(name, buf)
}

func (t *Transcript) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

// Digest hashes the transcript with SHAKE-256. It fails if a malformed
// element was appended.
func (t *Transcript) Digest() ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	h := sha3.NewShake256()
	writeLabel(h, t.domain, nil)
	for _, l := range t.labels {
		writeLabel(h, l.Name, l.Data)
	}
	out := make([]byte, DigestSize)
	_, _ = h.Read(out)
	return out, nil
}

func writeLabel(h sha3.ShakeHash, name string, data []byte) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(name)))
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(name))
	binary.LittleEndian.PutUint32(n[:], uint32(len(data)))
	_, _ = h.Write(n[:])
	_, _ = h.Write(data)
}

// Expand derives outLen bytes from a label and parts with SHAKE-256.
func Expand(outLen int, label string, parts ...[]byte) []byte {
	h := sha3.NewShake256()
	_, _ = h.Write([]byte(label))
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	out := make([]byte, outLen)
	_, _ = h.Read(out)
	return out
}
