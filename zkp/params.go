// Package zkp implements the non-interactive zero-knowledge proofs of the
// aggregation protocol: correct encryption linked to a Pedersen commitment,
// exact range validity of the committed block, and correct partial
// decryption. All proofs are Fiat-Shamir transformed and bound to a caller
// supplied context (round, party, block).
package zkp

import (
	"fmt"

	"github.com/asu-crypto/mario/commitment"
	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/params"
)

// PublicParams gathers what every prover and verifier shares.
type PublicParams struct {
	HE       *he.Parameters
	Pedersen *commitment.Pedersen
	digest   []byte
}

// NewPublicParams instantiates the HE parameters and commitment generators.
func NewPublicParams(p params.Params) (*PublicParams, error) {
	hp, err := he.NewParameters(p)
	if err != nil {
		return nil, err
	}
	pc, err := commitment.NewPedersen(p)
	if err != nil {
		return nil, fmt.Errorf("zkp: pedersen: %w", err)
	}
	return &PublicParams{HE: hp, Pedersen: pc, digest: p.Digest()}, nil
}
