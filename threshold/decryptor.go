package threshold

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/prof"
	"github.com/asu-crypto/mario/protocol"
	"github.com/asu-crypto/mario/verifier"
	"github.com/asu-crypto/mario/zkp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config configures a Decryptor.
type Config struct {
	Params    *zkp.PublicParams
	Threshold int
	// VerificationKeys holds the public key of every registered server.
	VerificationKeys []*he.VerificationKey
	// Verifier is the verification policy; defaults to verifier.Strict.
	Verifier verifier.Verifier
	// Timeout bounds Collect; zero means only the caller's context applies.
	Timeout time.Duration
	// Workers bounds the number of shares verified concurrently (default 4).
	Workers int
	Logger  zerolog.Logger
	// Profiler receives collection timings; nil disables them.
	Profiler *prof.Recorder
}

// Decryptor verifies partial decryptions and recombines the plaintext.
type Decryptor struct {
	cfg Config
	vks map[protocol.ServerID]*he.VerificationKey
	log zerolog.Logger
}

// NewDecryptor returns a decryptor for a t-of-n key.
func NewDecryptor(cfg Config) (*Decryptor, error) {
	if cfg.Params == nil {
		return nil, fmt.Errorf("threshold: missing parameters")
	}
	if cfg.Threshold < 1 || cfg.Threshold > len(cfg.VerificationKeys) {
		return nil, fmt.Errorf("threshold: threshold %d with %d servers", cfg.Threshold, len(cfg.VerificationKeys))
	}
	vks := make(map[protocol.ServerID]*he.VerificationKey, len(cfg.VerificationKeys))
	for _, vk := range cfg.VerificationKeys {
		if vk == nil || vk.Point == 0 {
			return nil, fmt.Errorf("threshold: invalid verification key")
		}
		if _, dup := vks[protocol.ServerID(vk.Point)]; dup {
			return nil, fmt.Errorf("threshold: duplicate verification key for server %d", vk.Point)
		}
		vks[protocol.ServerID(vk.Point)] = vk
	}
	if cfg.Verifier == nil {
		cfg.Verifier = verifier.NewStrict(cfg.Params)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Decryptor{
		cfg: cfg,
		vks: vks,
		log: cfg.Logger.With().Str("component", "threshold").Logger(),
	}, nil
}

// CheckRequest validates req against the threshold and the server registry.
func (d *Decryptor) CheckRequest(req *Request) error {
	if err := req.Validate(d.cfg.Params.HE, d.cfg.Threshold); err != nil {
		return err
	}
	for _, id := range req.Committee {
		if _, ok := d.vks[id]; !ok {
			return fmt.Errorf("threshold: unknown server %d in committee", id)
		}
	}
	return nil
}

// VerifyShare checks one server's answer to req: round, committee
// membership, block count, the Lagrange coefficient and every block proof.
func (d *Decryptor) VerifyShare(req *Request, pds *PartialDecryptionShare) error {
	if pds == nil {
		return fmt.Errorf("nil partial decryption")
	}
	if pds.Round != req.Round {
		return fmt.Errorf("share for round %s", pds.Round)
	}
	if !req.Contains(pds.Server) {
		return fmt.Errorf("server %d is not in the committee", pds.Server)
	}
	vk := d.vks[pds.Server]
	if vk == nil {
		return fmt.Errorf("unknown server %d", pds.Server)
	}
	if len(pds.Shares) != len(req.Blocks) || len(pds.Proofs) != len(req.Blocks) {
		return fmt.Errorf("%d shares and %d proofs for %d blocks", len(pds.Shares), len(pds.Proofs), len(req.Blocks))
	}
	lambda, err := req.Lambda(d.cfg.Params.HE.Q, pds.Server)
	if err != nil {
		return err
	}
	for b, share := range pds.Shares {
		if share == nil {
			return fmt.Errorf("block %d: nil share", b)
		}
		if share.Point != uint64(pds.Server) || share.Lambda != lambda {
			return fmt.Errorf("block %d: share not bound to this committee", b)
		}
		binding := protocol.ServerBinding(req.Round, pds.Server, b)
		if err := d.cfg.Verifier.VerifyShare(vk, req.Blocks[b], share, pds.Proofs[b], binding); err != nil {
			return fmt.Errorf("block %d: %w", b, err)
		}
	}
	return nil
}

// CollectShares verifies the given shares and, if every committee member
// supplied a valid one, recombines the plaintext. Shares from servers outside
// the committee are ignored. Otherwise it returns a
// *protocol.ThresholdNotMetError naming invalid and missing servers.
func (d *Decryptor) CollectShares(req *Request, shares []*PartialDecryptionShare) (*FinalPlaintext, error) {
	defer d.cfg.Profiler.Track(time.Now(), "threshold.CollectShares")
	if err := d.CheckRequest(req); err != nil {
		return nil, err
	}
	errs := make([]error, len(shares))
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Workers)
	for i, pds := range shares {
		g.Go(func() error {
			errs[i] = d.VerifyShare(req, pds)
			return nil
		})
	}
	_ = g.Wait()

	c := newCollection(req)
	for i, pds := range shares {
		c.add(pds, errs[i], d.log)
	}
	return d.finish(c)
}

// Collect consumes shares from in until the committee is complete, in is
// closed, or ctx (bounded by the configured timeout) expires. Shares are
// verified as they arrive.
func (d *Decryptor) Collect(ctx context.Context, req *Request, in <-chan *PartialDecryptionShare) (*FinalPlaintext, error) {
	defer d.cfg.Profiler.Track(time.Now(), "threshold.Collect")
	if err := d.CheckRequest(req); err != nil {
		return nil, err
	}
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	c := newCollection(req)
	for !c.complete() {
		select {
		case <-ctx.Done():
			d.log.Warn().Err(ctx.Err()).Str("round", req.Round.String()).Int("valid", len(c.valid)).Msg("share collection timed out")
			return d.finish(c)
		case pds, ok := <-in:
			if !ok {
				return d.finish(c)
			}
			c.add(pds, d.VerifyShare(req, pds), d.log)
		}
	}
	return d.finish(c)
}

// VerifyTranscript re-checks a final plaintext: every share in its
// transcript must verify and the recombination must reproduce the values.
func (d *Decryptor) VerifyTranscript(fp *FinalPlaintext) error {
	if fp == nil || fp.Transcript == nil {
		return fmt.Errorf("threshold: missing transcript")
	}
	req := fp.Transcript.Request
	if err := d.CheckRequest(req); err != nil {
		return err
	}
	if req.Round != fp.Round {
		return fmt.Errorf("threshold: transcript for round %s", req.Round)
	}
	c := newCollection(req)
	for _, pds := range fp.Transcript.Shares {
		if err := d.VerifyShare(req, pds); err != nil {
			return fmt.Errorf("threshold: transcript share: %w", err)
		}
		c.add(pds, nil, d.log)
	}
	if !c.complete() {
		return fmt.Errorf("threshold: transcript holds %d of %d committee shares", len(c.valid), len(req.Committee))
	}
	values, err := d.combine(req, c)
	if err != nil {
		return err
	}
	if !slices.Equal(values, fp.values) {
		return fmt.Errorf("threshold: recombined plaintext differs")
	}
	return nil
}

func (d *Decryptor) finish(c *collection) (*FinalPlaintext, error) {
	req := c.req
	if !c.complete() {
		return nil, c.notMet(d.cfg.Threshold)
	}
	values, err := d.combine(req, c)
	if err != nil {
		return nil, err
	}
	tr := &DecryptionTranscript{Request: req}
	for _, id := range req.Committee {
		tr.Shares = append(tr.Shares, c.valid[id])
	}
	d.log.Info().Str("round", req.Round.String()).Int("blocks", len(req.Blocks)).Msg("plaintext recombined")
	return &FinalPlaintext{Round: req.Round, Transcript: tr, values: values}, nil
}

func (d *Decryptor) combine(req *Request, c *collection) ([]int64, error) {
	hp := d.cfg.Params.HE
	values := make([]int64, 0, len(req.Blocks)*hp.N())
	for b, ct := range req.Blocks {
		shares := make([]*he.DecryptionShare, len(req.Committee))
		for i, id := range req.Committee {
			shares[i] = c.valid[id].Shares[b]
		}
		pt, err := he.CombineShares(hp, ct, shares)
		if err != nil {
			return nil, fmt.Errorf("threshold: block %d: %w", b, err)
		}
		values = append(values, pt...)
	}
	return values, nil
}

// collection tracks the shares received for one request. The first valid
// share of a server wins; a server whose only shares are invalid is reported
// as invalid.
type collection struct {
	req     *Request
	valid   map[protocol.ServerID]*PartialDecryptionShare
	invalid map[protocol.ServerID]bool
}

func newCollection(req *Request) *collection {
	return &collection{
		req:     req,
		valid:   make(map[protocol.ServerID]*PartialDecryptionShare, len(req.Committee)),
		invalid: make(map[protocol.ServerID]bool),
	}
}

func (c *collection) add(pds *PartialDecryptionShare, err error, log zerolog.Logger) {
	if pds == nil {
		return
	}
	if !c.req.Contains(pds.Server) {
		log.Debug().Uint64("server", uint64(pds.Server)).Msg("share from outside the committee ignored")
		return
	}
	if err != nil {
		log.Warn().Uint64("server", uint64(pds.Server)).Err(err).Msg("partial decryption rejected")
		if _, ok := c.valid[pds.Server]; !ok {
			c.invalid[pds.Server] = true
		}
		return
	}
	if _, ok := c.valid[pds.Server]; ok {
		return
	}
	delete(c.invalid, pds.Server)
	c.valid[pds.Server] = pds
}

func (c *collection) complete() bool {
	return len(c.valid) == len(c.req.Committee)
}

func (c *collection) notMet(t int) *protocol.ThresholdNotMetError {
	e := &protocol.ThresholdNotMetError{Round: c.req.Round, Threshold: t, Valid: len(c.valid)}
	for id := range c.invalid {
		e.Invalid = append(e.Invalid, id)
	}
	for _, id := range c.req.Committee {
		if _, ok := c.valid[id]; !ok && !c.invalid[id] {
			e.Missing = append(e.Missing, id)
		}
	}
	e.Invalid = sortedIDs(e.Invalid)
	e.Missing = sortedIDs(e.Missing)
	return e
}
