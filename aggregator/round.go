// Package aggregator collects client submissions for one round, verifies
// them in parallel, and homomorphically sums the verified set.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/prof"
	"github.com/asu-crypto/mario/protocol"
	"github.com/asu-crypto/mario/threshold"
	"github.com/asu-crypto/mario/transcript"
	"github.com/asu-crypto/mario/verifier"
	"github.com/asu-crypto/mario/zkp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a round.
type State int

const (
	Collecting State = iota
	Verifying
	Aggregated
	Decrypting
	Finalized
	Aborted
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Verifying:
		return "verifying"
	case Aggregated:
		return "aggregated"
	case Decrypting:
		return "decrypting"
	case Finalized:
		return "finalized"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config configures a Round.
type Config struct {
	Params    *zkp.PublicParams
	PublicKey *he.PublicKey
	// Verifier is the verification policy; defaults to verifier.Strict.
	Verifier verifier.Verifier
	// Workers bounds the number of blocks verified concurrently
	// (default 4).
	Workers int
	Logger  zerolog.Logger
	// Profiler receives verification and aggregation timings; nil
	// disables them.
	Profiler *prof.Recorder
}

// Report is the outcome of verification.
type Report struct {
	Round    protocol.RoundID
	Accepted []protocol.ClientID
	Excluded []protocol.Exclusion
}

// Aggregate is the homomorphic sum of the verified set, one ciphertext per
// block position.
type Aggregate struct {
	Round   protocol.RoundID
	Blocks  []*he.Ciphertext
	Clients []protocol.ClientID
	// Root commits to the verified submissions; leaf k is the submission of
	// Clients[k], and Clients is sorted by client id.
	Root transcript.Hash
}

// Round is the per-round state machine:
//
//	Collecting -> Verifying -> Aggregated -> Decrypting -> Finalized
//
// with Aborted reachable from every non-terminal state.
type Round struct {
	id  protocol.RoundID
	cfg Config
	log zerolog.Logger

	mu          sync.Mutex
	state       State
	submissions map[protocol.ClientID]*protocol.SubmissionRecord
	arrival     []protocol.ClientID
	verified    []*protocol.SubmissionRecord
	excluded    []protocol.Exclusion
	checked     bool
	aggregate   *Aggregate
	tree        *transcript.MerkleTree
	leaves      [][]byte
	leafIndex   map[protocol.ClientID]int
	result      *threshold.FinalPlaintext
	err         error
}

// NewRound opens a round in the Collecting state.
func NewRound(id protocol.RoundID, cfg Config) (*Round, error) {
	if cfg.Params == nil || cfg.PublicKey == nil {
		return nil, fmt.Errorf("aggregator: missing parameters or public key")
	}
	if cfg.Verifier == nil {
		cfg.Verifier = verifier.NewStrict(cfg.Params)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Round{
		id:          id,
		cfg:         cfg,
		log:         cfg.Logger.With().Str("component", "aggregator").Str("round", id.String()).Logger(),
		state:       Collecting,
		submissions: make(map[protocol.ClientID]*protocol.SubmissionRecord),
	}, nil
}

// ID returns the round identifier.
func (r *Round) ID() protocol.RoundID { return r.id }

// State returns the current state.
func (r *Round) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Len returns the number of accepted submissions so far.
func (r *Round) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.arrival)
}

// Submit records a copy of a submission, so later changes to rec do not
// reach the round. It only succeeds while collecting, and each client has a
// single slot.
func (r *Round) Submit(rec *protocol.SubmissionRecord) error {
	if err := rec.CheckShape(); err != nil {
		return err
	}
	if rec.Round != r.id {
		return fmt.Errorf("%w: submission for round %s", protocol.ErrMalformedSubmission, rec.Round)
	}
	for i, ct := range rec.Ciphertexts {
		if err := r.cfg.Params.HE.CheckCiphertext(ct); err != nil {
			return fmt.Errorf("%w: block %d: %v", protocol.ErrMalformedSubmission, i, err)
		}
	}
	rec = rec.Clone(r.cfg.Params.HE)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Collecting {
		return &protocol.RoundClosedError{Round: r.id, State: r.state.String()}
	}
	if _, dup := r.submissions[rec.Client]; dup {
		return fmt.Errorf("client %s: %w", rec.Client, protocol.ErrDuplicateSubmission)
	}
	r.submissions[rec.Client] = rec
	r.arrival = append(r.arrival, rec.Client)
	r.log.Debug().Str("client", string(rec.Client)).Int("blocks", rec.Blocks()).Msg("submission received")
	return nil
}

// CloseAndVerify stops collection and verifies every block of every
// submission in parallel. A submission enters the verified set only if all
// its blocks pass. Cancelling ctx aborts the round.
func (r *Round) CloseAndVerify(ctx context.Context) (*Report, error) {
	defer r.cfg.Profiler.Track(time.Now(), "aggregator.CloseAndVerify")
	r.mu.Lock()
	if r.state != Collecting {
		st := r.state
		r.mu.Unlock()
		return nil, fmt.Errorf("close round in state %s: %w", st, protocol.ErrInvalidState)
	}
	r.state = Verifying
	subs := make([]*protocol.SubmissionRecord, len(r.arrival))
	for i, id := range r.arrival {
		subs[i] = r.submissions[id]
	}
	r.mu.Unlock()

	failures := make([][]error, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for s, rec := range subs {
		failures[s] = make([]error, rec.Blocks())
		for b := range rec.Ciphertexts {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				binding := protocol.ClientBinding(r.id, rec.Client, b)
				failures[s][b] = r.cfg.Verifier.VerifyBlock(r.cfg.PublicKey, rec.Ciphertexts[b], rec.Proofs[b], binding)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		_ = r.Abort(err)
		return nil, fmt.Errorf("verify round %s: %w", r.id, err)
	}

	report := &Report{Round: r.id}
	var verified []*protocol.SubmissionRecord
	for s, rec := range subs {
		if f := firstFailure(rec.Client, failures[s]); f != nil {
			report.Excluded = append(report.Excluded, protocol.Exclusion{Client: rec.Client, Failure: f})
			r.log.Warn().Str("client", string(rec.Client)).Int("block", f.Block).Str("reason", f.Reason).Msg("submission excluded")
			continue
		}
		verified = append(verified, rec)
	}
	sort.Slice(verified, func(i, j int) bool { return verified[i].Client < verified[j].Client })
	for _, rec := range verified {
		report.Accepted = append(report.Accepted, rec.Client)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Verifying {
		return nil, fmt.Errorf("round left verification (state %s): %w", r.state, protocol.ErrInvalidState)
	}
	r.verified = verified
	r.excluded = report.Excluded
	r.checked = true
	r.log.Info().Str("policy", r.cfg.Verifier.Name()).Int("accepted", len(report.Accepted)).Int("excluded", len(report.Excluded)).Msg("verification done")
	return report, nil
}

func firstFailure(client protocol.ClientID, errs []error) *protocol.ProofVerificationFailure {
	for b, err := range errs {
		if err != nil {
			return &protocol.ProofVerificationFailure{Client: client, Block: b, Reason: err.Error()}
		}
	}
	return nil
}

// Aggregate sums the verified set block-wise. Submissions with fewer blocks
// contribute the zero ciphertext at missing positions. An empty verified set
// aborts the round with an EmptyAggregateError, and one larger than
// Params.MaxClients with an AggregateOverflowError.
func (r *Round) Aggregate() (*Aggregate, error) {
	defer r.cfg.Profiler.Track(time.Now(), "aggregator.Aggregate")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Verifying || !r.checked {
		return nil, fmt.Errorf("aggregate in state %s: %w", r.state, protocol.ErrInvalidState)
	}
	if len(r.verified) == 0 {
		err := &protocol.EmptyAggregateError{Round: r.id, Excluded: len(r.excluded)}
		r.abortLocked(err)
		return nil, err
	}
	hp := r.cfg.Params.HE
	if limit := hp.MaxClients(); len(r.verified) > limit {
		err := &protocol.AggregateOverflowError{Round: r.id, Clients: len(r.verified), Max: limit}
		r.abortLocked(err)
		return nil, err
	}
	maxBlocks := 0
	for _, rec := range r.verified {
		maxBlocks = max(maxBlocks, rec.Blocks())
	}
	agg := &Aggregate{Round: r.id, Blocks: make([]*he.Ciphertext, maxBlocks)}
	for i := 0; i < maxBlocks; i++ {
		operands := make([]*he.Ciphertext, len(r.verified))
		for k, rec := range r.verified {
			if i < rec.Blocks() {
				operands[k] = rec.Ciphertexts[i]
			} else {
				operands[k] = he.ZeroCiphertext(hp)
			}
		}
		sum, err := he.AddMany(hp, operands)
		if err != nil {
			r.abortLocked(err)
			return nil, fmt.Errorf("aggregate block %d: %w", i, err)
		}
		agg.Blocks[i] = sum
	}

	leaves := make([][]byte, len(r.verified))
	r.leafIndex = make(map[protocol.ClientID]int, len(r.verified))
	for k, rec := range r.verified {
		leaf, err := transcript.SubmissionLeaf(rec)
		if err != nil {
			r.abortLocked(err)
			return nil, err
		}
		leaves[k] = leaf
		r.leafIndex[rec.Client] = k
		agg.Clients = append(agg.Clients, rec.Client)
	}
	tree, err := transcript.BuildMerkleTree(leaves)
	if err != nil {
		r.abortLocked(err)
		return nil, err
	}
	agg.Root = tree.Root()
	r.tree, r.leaves, r.aggregate = tree, leaves, agg
	r.state = Aggregated
	r.log.Info().Int("clients", len(agg.Clients)).Int("blocks", maxBlocks).Msg("aggregate computed")
	return agg, nil
}

// InclusionProof returns the Merkle path of client's verified submission
// under the aggregate root.
func (r *Round) InclusionProof(client protocol.ClientID) (*transcript.InclusionProof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tree == nil {
		return nil, fmt.Errorf("no aggregate yet: %w", protocol.ErrInvalidState)
	}
	idx, ok := r.leafIndex[client]
	if !ok {
		return nil, fmt.Errorf("client %s is not in the verified set", client)
	}
	path, err := r.tree.Path(idx)
	if err != nil {
		return nil, err
	}
	return &transcript.InclusionProof{Index: idx, Leaf: append([]byte(nil), r.leaves[idx]...), Path: path}, nil
}

// BeginDecryption moves an aggregated round to Decrypting and returns the
// aggregate to decrypt.
func (r *Round) BeginDecryption() (*Aggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Aggregated {
		return nil, fmt.Errorf("begin decryption in state %s: %w", r.state, protocol.ErrInvalidState)
	}
	r.state = Decrypting
	return r.aggregate, nil
}

// Finalize records the decrypted result.
func (r *Round) Finalize(fp *threshold.FinalPlaintext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Decrypting {
		return fmt.Errorf("finalize in state %s: %w", r.state, protocol.ErrInvalidState)
	}
	if fp == nil || fp.Round != r.id {
		return fmt.Errorf("%w: result for another round", protocol.ErrInvalidState)
	}
	r.result = fp
	r.state = Finalized
	r.log.Info().Msg("round finalized")
	return nil
}

// Abort terminates the round with err. Terminal rounds cannot be aborted.
func (r *Round) Abort(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Finalized || r.state == Aborted {
		return fmt.Errorf("abort in state %s: %w", r.state, protocol.ErrInvalidState)
	}
	r.abortLocked(err)
	return nil
}

func (r *Round) abortLocked(err error) {
	if err == nil {
		err = errors.New("aborted")
	}
	r.state = Aborted
	r.err = err
	r.log.Warn().Err(err).Msg("round aborted")
}

// Result returns the final plaintext of a finalized round, or the abort
// cause. An aborted round never yields a vector.
func (r *Round) Result() (*threshold.FinalPlaintext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case Finalized:
		return r.result, nil
	case Aborted:
		return nil, r.err
	}
	return nil, fmt.Errorf("result in state %s: %w", r.state, protocol.ErrInvalidState)
}

// Excluded returns the exclusions recorded during verification.
func (r *Round) Excluded() []protocol.Exclusion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Exclusion(nil), r.excluded...)
}
