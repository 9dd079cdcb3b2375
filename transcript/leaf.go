package transcript

import (
	"encoding/binary"
	"fmt"

	"github.com/asu-crypto/mario/protocol"
	"golang.org/x/crypto/sha3"
)

// SubmissionLeaf is the leaf committed for a verified submission: a digest
// of the round, the client id and every ciphertext.
func SubmissionLeaf(rec *protocol.SubmissionRecord) ([]byte, error) {
	h := sha3.NewShake256()
	_, _ = h.Write([]byte("mario/leaf"))
	_, _ = h.Write(rec.Round.Bytes())
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(rec.Client)))
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(rec.Client))
	binary.LittleEndian.PutUint64(n[:], uint64(len(rec.Ciphertexts)))
	_, _ = h.Write(n[:])
	for i, ct := range rec.Ciphertexts {
		b, err := ct.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("transcript: block %d: %w", i, err)
		}
		_, _ = h.Write(b)
	}
	out := make([]byte, HashSize)
	_, _ = h.Read(out)
	return out, nil
}
