package zkp

import "go.dedis.ch/kyber/v3"

// Clone returns a deep copy of the proof.
func (p *EncryptionProof) Clone() *EncryptionProof {
	if p == nil {
		return nil
	}
	return &EncryptionProof{
		Binding:    append([]byte(nil), p.Binding...),
		Commitment: clonePoints(p.Commitment),
		Digest:     append([]byte(nil), p.Digest...),
		Z:          cloneRows(p.Z),
		ZR:         cloneScalars(p.ZR),
	}
}

// Clone returns a deep copy of the proof.
func (p *ValidationProof) Clone() *ValidationProof {
	if p == nil {
		return nil
	}
	out := &ValidationProof{
		Bound:      p.Bound,
		Commitment: clonePoints(p.Commitment),
		Digest:     append([]byte(nil), p.Digest...),
	}
	if p.Bits != nil {
		out.Bits = make([][]kyber.Point, len(p.Bits))
		for i, row := range p.Bits {
			out.Bits[i] = clonePoints(row)
		}
	}
	out.E0, out.Z0, out.Z1 = cloneScalarRows(p.E0), cloneScalarRows(p.Z0), cloneScalarRows(p.Z1)
	return out
}

func cloneRows(rows [][]int64) [][]int64 {
	if rows == nil {
		return nil
	}
	out := make([][]int64, len(rows))
	for i, r := range rows {
		out[i] = append([]int64(nil), r...)
	}
	return out
}

func clonePoints(ps []kyber.Point) []kyber.Point {
	if ps == nil {
		return nil
	}
	out := make([]kyber.Point, len(ps))
	for i, p := range ps {
		if p != nil {
			out[i] = p.Clone()
		}
	}
	return out
}

func cloneScalars(ss []kyber.Scalar) []kyber.Scalar {
	if ss == nil {
		return nil
	}
	out := make([]kyber.Scalar, len(ss))
	for i, s := range ss {
		if s != nil {
			out[i] = s.Clone()
		}
	}
	return out
}

func cloneScalarRows(rows [][]kyber.Scalar) [][]kyber.Scalar {
	if rows == nil {
		return nil
	}
	out := make([][]kyber.Scalar, len(rows))
	for i, r := range rows {
		out[i] = cloneScalars(r)
	}
	return out
}
