// Package encoder splits raw integer vectors into fixed-size plaintext blocks
// and joins decrypted blocks back.
package encoder

import (
	"fmt"

	"github.com/asu-crypto/mario/protocol"
)

// Block is one plaintext block of exactly N coefficients.
type Block []int64

// Split cuts raw into ceil(len/degree) blocks of degree coefficients, zero
// padding the last one.
func Split(raw []int64, degree int) ([]Block, error) {
	if degree <= 0 {
		return nil, &protocol.EncodingError{Reason: fmt.Sprintf("invalid block size %d", degree)}
	}
	if len(raw) == 0 {
		return nil, &protocol.EncodingError{Reason: "empty input vector"}
	}
	blocks := make([]Block, 0, (len(raw)+degree-1)/degree)
	for start := 0; start < len(raw); start += degree {
		b := make(Block, degree)
		copy(b, raw[start:min(start+degree, len(raw))])
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Join concatenates blocks and trims the result to length. A negative length
// keeps the padding.
func Join(blocks []Block, length int) []int64 {
	var out []int64
	for _, b := range blocks {
		out = append(out, b...)
	}
	if length >= 0 && length < len(out) {
		out = out[:length]
	}
	return out
}

// CheckRange reports an EncodingError if a coefficient of b lies outside
// [-bound, bound].
func CheckRange(b Block, bound int64) error {
	for i, v := range b {
		if v < -bound || v > bound {
			return &protocol.EncodingError{Reason: fmt.Sprintf("coefficient %d = %d outside [-%d, %d]", i, v, bound, bound)}
		}
	}
	return nil
}
