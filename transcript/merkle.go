// Package transcript commits to the verified set of a round with a Merkle
// tree so a client can check that its accepted submission is part of the
// aggregate.
package transcript

import (
	"bytes"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// HashSize is the size of tree hashes (SHAKE-256 truncated).
const HashSize = 32

// Hash is a tree node.
type Hash [HashSize]byte

// MerkleTree is a full binary Merkle tree over the leaves.
type MerkleTree struct {
	layers [][]Hash
	leaves int
}

// InclusionProof shows that Leaf sits at Index under a root.
type InclusionProof struct {
	Index int
	Leaf  []byte
	Path  [][]byte
}

// BuildMerkleTree builds a balanced tree from leaves, padding with empty
// leaves up to a power of two.
func BuildMerkleTree(leaves [][]byte) (*MerkleTree, error) {
	n := len(leaves)
	if n == 0 {
		return nil, fmt.Errorf("transcript: no leaves")
	}
	size := 1
	for size < n {
		size <<= 1
	}
	layer := make([]Hash, size)
	for i := 0; i < size; i++ {
		var leaf []byte
		if i < n {
			leaf = leaves[i]
		}
		layer[i] = hashLeaf(leaf)
	}
	layers := [][]Hash{layer}
	for sz := size; sz > 1; sz >>= 1 {
		prev := layers[len(layers)-1]
		next := make([]Hash, sz/2)
		for i := 0; i < sz; i += 2 {
			next[i/2] = hashNode(prev[i][:], prev[i+1][:])
		}
		layers = append(layers, next)
	}
	return &MerkleTree{layers: layers, leaves: n}, nil
}

// Root returns the root hash.
func (mt *MerkleTree) Root() Hash {
	return mt.layers[len(mt.layers)-1][0]
}

// Len returns the number of real leaves.
func (mt *MerkleTree) Len() int { return mt.leaves }

// Path returns the sibling path for leaf idx.
func (mt *MerkleTree) Path(idx int) ([][]byte, error) {
	if idx < 0 || idx >= mt.leaves {
		return nil, fmt.Errorf("transcript: leaf %d out of range [0,%d)", idx, mt.leaves)
	}
	path := make([][]byte, len(mt.layers)-1)
	for lvl := 0; lvl < len(mt.layers)-1; lvl++ {
		h := mt.layers[lvl][idx^1]
		path[lvl] = append([]byte(nil), h[:]...)
		idx >>= 1
	}
	return path, nil
}

// VerifyPath checks leaf -> root via path.
func VerifyPath(leaf []byte, path [][]byte, root Hash, idx int) bool {
	if idx < 0 || idx >= 1<<len(path) {
		return false
	}
	h := hashLeaf(leaf)
	for _, sib := range path {
		if len(sib) != HashSize {
			return false
		}
		if idx&1 == 0 {
			h = hashNode(h[:], sib)
		} else {
			h = hashNode(sib, h[:])
		}
		idx >>= 1
	}
	return bytes.Equal(h[:], root[:])
}

// Verify checks an inclusion proof against root.
func (p *InclusionProof) Verify(root Hash) bool {
	return p != nil && VerifyPath(p.Leaf, p.Path, root, p.Index)
}

func hashLeaf(leaf []byte) Hash {
	buf := make([]byte, 1+len(leaf))
	buf[0] = leafPrefix
	copy(buf[1:], leaf)
	return shake(buf)
}

func hashNode(left, right []byte) Hash {
	var buf [1 + 2*HashSize]byte
	buf[0] = nodePrefix
	copy(buf[1:], left)
	copy(buf[1+HashSize:], right)
	return shake(buf[:])
}

func shake(data []byte) Hash {
	var out Hash
	h := sha3.NewShake256()
	_, _ = h.Write(data)
	_, _ = h.Read(out[:])
	return out
}
