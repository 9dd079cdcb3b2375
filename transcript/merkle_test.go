package transcript

import (
	"fmt"
	"testing"

	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/params"
	"github.com/asu-crypto/mario/protocol"
)

func TestMerklePaths(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8} {
		leaves := make([][]byte, n)
		for i := range leaves {
			leaves[i] = []byte(fmt.Sprintf("leaf-%d", i))
		}
		mt, err := BuildMerkleTree(leaves)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		root := mt.Root()
		for i := range leaves {
			path, err := mt.Path(i)
			if err != nil {
				t.Fatalf("path %d: %v", i, err)
			}
			if !VerifyPath(leaves[i], path, root, i) {
				t.Fatalf("n=%d: path %d does not verify", n, i)
			}
			if VerifyPath([]byte("other"), path, root, i) {
				t.Fatalf("n=%d: forged leaf verified", n)
			}
			if n > 1 && VerifyPath(leaves[i], path, root, i^1) {
				t.Fatalf("n=%d: wrong index verified", n)
			}
		}
		if _, err := mt.Path(n); err == nil {
			t.Fatalf("expected out of range error")
		}
	}
	if _, err := BuildMerkleTree(nil); err == nil {
		t.Fatalf("expected error on empty tree")
	}
}

func TestInclusionProof(t *testing.T) {
	mt, err := BuildMerkleTree([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	path, _ := mt.Path(2)
	p := &InclusionProof{Index: 2, Leaf: []byte("c"), Path: path}
	if !p.Verify(mt.Root()) {
		t.Fatalf("inclusion proof rejected")
	}
	p.Path[0][0] ^= 1
	if p.Verify(mt.Root()) {
		t.Fatalf("tampered path accepted")
	}
	var nilProof *InclusionProof
	if nilProof.Verify(mt.Root()) {
		t.Fatalf("nil proof accepted")
	}
}

func TestSubmissionLeaf(t *testing.T) {
	p, _ := params.Preset("test")
	hp, err := he.NewParameters(p)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	rec := &protocol.SubmissionRecord{Round: protocol.NewRoundID(), Client: "a", Ciphertexts: []*he.Ciphertext{he.ZeroCiphertext(hp)}}
	l1, err := SubmissionLeaf(rec)
	if err != nil {
		t.Fatalf("leaf: %v", err)
	}
	rec.Client = "b"
	l2, _ := SubmissionLeaf(rec)
	if string(l1) == string(l2) {
		t.Fatalf("leaves of different clients collide")
	}
	rec.Ciphertexts = []*he.Ciphertext{nil}
	if _, err := SubmissionLeaf(rec); err == nil {
		t.Fatalf("expected error for nil ciphertext")
	}
}
