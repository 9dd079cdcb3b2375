// Package client implements the client side of a round: encode a private
// vector, encrypt every block and prove each ciphertext correct and valid.
package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/asu-crypto/mario/encoder"
	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/prof"
	"github.com/asu-crypto/mario/protocol"
	"github.com/asu-crypto/mario/zkp"
	"github.com/rs/zerolog"
)

// Config configures a Client.
type Config struct {
	ID        protocol.ClientID
	Params    *zkp.PublicParams
	PublicKey *he.PublicKey
	Logger    zerolog.Logger
	// Profiler receives encryption timings; nil disables them.
	Profiler *prof.Recorder
}

// Client holds the public material a contributor needs. It is immutable and
// safe for concurrent use.
type Client struct {
	id    protocol.ClientID
	pp    *zkp.PublicParams
	enc   *he.Encryptor
	log   zerolog.Logger
	timer *prof.Recorder
}

// New returns a client.
func New(cfg Config) (*Client, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("client: empty id")
	}
	if cfg.Params == nil || cfg.PublicKey == nil {
		return nil, fmt.Errorf("client: missing parameters or public key")
	}
	return &Client{
		id:    cfg.ID,
		pp:    cfg.Params,
		enc:   he.NewEncryptor(cfg.Params.HE, cfg.PublicKey),
		log:   cfg.Logger.With().Str("component", "client").Str("client", string(cfg.ID)).Logger(),
		timer: cfg.Profiler,
	}, nil
}

// ID returns the client identifier.
func (c *Client) ID() protocol.ClientID { return c.id }

// Encrypt splits raw into blocks and returns one ciphertext and one proof
// bundle per block, bound to round. Every call uses fresh randomness.
func (c *Client) Encrypt(round protocol.RoundID, raw []int64) ([]*he.Ciphertext, []protocol.ProofBundle, error) {
	defer c.timer.Track(time.Now(), "client.Encrypt")
	hp := c.pp.HE
	blocks, err := encoder.Split(raw, hp.N())
	if err != nil {
		return nil, nil, err
	}
	for i, b := range blocks {
		if err := encoder.CheckRange(b, hp.InputBound); err != nil {
			var enc *protocol.EncodingError
			if errors.As(err, &enc) {
				enc.Reason = fmt.Sprintf("block %d: %s", i, enc.Reason)
			}
			return nil, nil, err
		}
	}
	cts := make([]*he.Ciphertext, len(blocks))
	bundles := make([]protocol.ProofBundle, len(blocks))
	for i, b := range blocks {
		ct, bundle, err := c.encryptBlock(round, i, b)
		if err != nil {
			return nil, nil, fmt.Errorf("client %s block %d: %w", c.id, i, err)
		}
		cts[i], bundles[i] = ct, bundle
	}
	c.log.Debug().Str("round", round.String()).Int("blocks", len(blocks)).Msg("encrypted vector")
	return cts, bundles, nil
}

func (c *Client) encryptBlock(round protocol.RoundID, index int, b encoder.Block) (*he.Ciphertext, protocol.ProofBundle, error) {
	ct, w, err := c.enc.Encrypt(b)
	if err != nil {
		return nil, protocol.ProofBundle{}, err
	}
	coms, op := c.pp.Pedersen.CommitVector(b)
	binding := protocol.ClientBinding(round, c.id, index)
	encProof, err := zkp.ProveEncryption(c.pp, c.enc.PublicKey(), ct, b, w, coms, op, binding)
	if err != nil {
		return nil, protocol.ProofBundle{}, err
	}
	valProof, err := zkp.ProveRange(c.pp, b, coms, op)
	if err != nil {
		return nil, protocol.ProofBundle{}, err
	}
	return ct, protocol.ProofBundle{Encryption: encProof, Validation: valProof}, nil
}

// Submit encrypts raw and packages it as a submission for round.
func (c *Client) Submit(round protocol.RoundID, raw []int64) (*protocol.SubmissionRecord, error) {
	cts, proofs, err := c.Encrypt(round, raw)
	if err != nil {
		return nil, err
	}
	return &protocol.SubmissionRecord{Round: round, Client: c.id, Ciphertexts: cts, Proofs: proofs}, nil
}
