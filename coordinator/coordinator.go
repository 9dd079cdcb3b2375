// Package coordinator wires the participants of a deployment together: it
// runs the trusted dealer, owns the client and server registries, opens
// rounds and drives a round from submissions to the final plaintext.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/asu-crypto/mario/aggregator"
	"github.com/asu-crypto/mario/client"
	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/params"
	"github.com/asu-crypto/mario/prof"
	"github.com/asu-crypto/mario/protocol"
	"github.com/asu-crypto/mario/threshold"
	"github.com/asu-crypto/mario/verifier"
	"github.com/asu-crypto/mario/zkp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownClient is returned for operations on an unregistered client.
var ErrUnknownClient = errors.New("unknown client")

// Config configures a Coordinator.
type Config struct {
	Params    params.Params
	Servers   int
	Threshold int
	// Workers bounds concurrent proof generation and verification (default 4).
	Workers int
	// Timeout bounds share collection in a round; zero waits until every
	// committee member answered or ctx is done.
	Timeout time.Duration
	// SemiHonest selects the shape-only verification policy.
	SemiHonest bool
	Logger     zerolog.Logger
	// Profiler is handed to every participant the coordinator creates; nil
	// disables timings.
	Profiler *prof.Recorder
}

// Outcome summarises a round run by the coordinator.
type Outcome struct {
	Round protocol.RoundID
	// Rejected holds submissions refused at submit time.
	Rejected map[protocol.ClientID]error
	Report   *aggregator.Report
	Result   *threshold.FinalPlaintext
	// Values is the decrypted sum, trimmed by Run to the longest accepted
	// input.
	Values []int64
}

// Coordinator holds the registries and the public material of a deployment.
type Coordinator struct {
	cfg  Config
	pp   *zkp.PublicParams
	keys *he.ThresholdKeys
	pol  verifier.Verifier
	dec  *threshold.Decryptor
	log  zerolog.Logger

	mu      sync.Mutex
	clients map[protocol.ClientID]*client.Client
	servers map[protocol.ServerID]*threshold.Server
	order   []protocol.ServerID
	offline map[protocol.ServerID]bool
	rounds  map[protocol.RoundID]*aggregator.Round
}

// New runs the trusted dealer for a t-of-n key and registers the n servers.
func New(cfg Config) (*Coordinator, error) {
	pp, err := zkp.NewPublicParams(cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	keys, err := he.GenThresholdKeys(pp.HE, cfg.Servers, cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	var pol verifier.Verifier = verifier.NewStrict(pp)
	if cfg.SemiHonest {
		pol = verifier.NewSemiHonest(pp.HE)
	}
	c := &Coordinator{
		cfg:     cfg,
		pp:      pp,
		keys:    keys,
		pol:     pol,
		log:     cfg.Logger.With().Str("component", "coordinator").Logger(),
		clients: make(map[protocol.ClientID]*client.Client),
		servers: make(map[protocol.ServerID]*threshold.Server),
		offline: make(map[protocol.ServerID]bool),
		rounds:  make(map[protocol.RoundID]*aggregator.Round),
	}
	for i, key := range keys.Shares {
		s, err := threshold.NewServer(threshold.ServerConfig{
			Params:          pp.HE,
			Key:             key,
			VerificationKey: keys.Verification[i],
			Logger:          cfg.Logger,
			Profiler:        cfg.Profiler,
		})
		if err != nil {
			return nil, fmt.Errorf("coordinator: %w", err)
		}
		c.servers[s.ID()] = s
		c.order = append(c.order, s.ID())
	}
	c.dec, err = threshold.NewDecryptor(threshold.Config{
		Params:           pp,
		Threshold:        cfg.Threshold,
		VerificationKeys: keys.Verification,
		Verifier:         pol,
		Timeout:          cfg.Timeout,
		Workers:          cfg.Workers,
		Logger:           cfg.Logger,
		Profiler:         cfg.Profiler,
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	c.log.Info().Str("params", cfg.Params.Name).Int("servers", cfg.Servers).Int("threshold", cfg.Threshold).Str("policy", pol.Name()).Msg("dealer done")
	return c, nil
}

// PublicParams returns the shared public parameters.
func (c *Coordinator) PublicParams() *zkp.PublicParams { return c.pp }

// PublicKey returns the joint encryption key.
func (c *Coordinator) PublicKey() *he.PublicKey { return c.keys.Public }

// Decryptor returns the share verifier and combiner.
func (c *Coordinator) Decryptor() *threshold.Decryptor { return c.dec }

// Servers returns the registered server ids in registration order.
func (c *Coordinator) Servers() []protocol.ServerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.ServerID(nil), c.order...)
}

// Server returns a registered server.
func (c *Coordinator) Server(id protocol.ServerID) (*threshold.Server, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.servers[id]
	return s, ok
}

// SetOnline marks a server as reachable or not. Offline servers never
// answer decryption requests.
func (c *Coordinator) SetOnline(id protocol.ServerID, online bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.servers[id]; !ok {
		return fmt.Errorf("coordinator: unknown server %d", id)
	}
	if online {
		delete(c.offline, id)
	} else {
		c.offline[id] = true
	}
	return nil
}

// RegisterClient registers a new client and returns it.
func (c *Coordinator) RegisterClient(id protocol.ClientID) (*client.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.clients[id]; dup {
		return nil, fmt.Errorf("coordinator: client %s already registered", id)
	}
	cl, err := client.New(client.Config{ID: id, Params: c.pp, PublicKey: c.keys.Public, Logger: c.cfg.Logger, Profiler: c.cfg.Profiler})
	if err != nil {
		return nil, err
	}
	c.clients[id] = cl
	return cl, nil
}

// Client returns a registered client.
func (c *Coordinator) Client(id protocol.ClientID) (*client.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.clients[id]
	if !ok {
		return nil, fmt.Errorf("coordinator: client %s: %w", id, ErrUnknownClient)
	}
	return cl, nil
}

// NewRound opens a fresh round.
func (c *Coordinator) NewRound() (*aggregator.Round, error) {
	r, err := aggregator.NewRound(protocol.NewRoundID(), aggregator.Config{
		Params:    c.pp,
		PublicKey: c.keys.Public,
		Verifier:  c.pol,
		Workers:   c.cfg.Workers,
		Logger:    c.cfg.Logger,
		Profiler:  c.cfg.Profiler,
	})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.rounds[r.ID()] = r
	c.mu.Unlock()
	return r, nil
}

// Round returns an opened round.
func (c *Coordinator) Round(id protocol.RoundID) (*aggregator.Round, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rounds[id]
	return r, ok
}

// DefaultCommittee returns the first t registered servers.
func (c *Coordinator) DefaultCommittee() []protocol.ServerID {
	return c.Servers()[:c.cfg.Threshold]
}

// Decrypt runs the decryption phase of an aggregated round: the committee
// members answer concurrently and the decryptor collects their shares. A
// failed collection aborts the round.
func (c *Coordinator) Decrypt(ctx context.Context, r *aggregator.Round, committee []protocol.ServerID) (*threshold.FinalPlaintext, error) {
	defer c.cfg.Profiler.Track(time.Now(), "coordinator.Decrypt")
	agg, err := r.BeginDecryption()
	if err != nil {
		return nil, err
	}
	if committee == nil {
		committee = c.DefaultCommittee()
	}
	req := &threshold.Request{Round: r.ID(), Blocks: agg.Blocks, Committee: committee}
	if err := c.dec.CheckRequest(req); err != nil {
		_ = r.Abort(err)
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	in := make(chan *threshold.PartialDecryptionShare, len(committee))
	var wg sync.WaitGroup
	c.mu.Lock()
	for _, id := range committee {
		s := c.servers[id]
		if c.offline[id] {
			c.log.Debug().Uint64("server", uint64(id)).Msg("server offline")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			pds, err := s.PartialDecrypt(req)
			if err != nil {
				c.log.Warn().Uint64("server", uint64(id)).Err(err).Msg("partial decryption failed")
				return
			}
			select {
			case in <- pds:
			case <-ctx.Done():
			}
		}()
	}
	c.mu.Unlock()
	go func() {
		wg.Wait()
		close(in)
	}()

	fp, err := c.dec.Collect(ctx, req, in)
	if err != nil {
		_ = r.Abort(err)
		return nil, err
	}
	if err := r.Finalize(fp); err != nil {
		return nil, err
	}
	return fp, nil
}

// RunRound drives an opened round: it submits the given records, verifies,
// aggregates and decrypts with committee (nil selects the default
// committee). The returned outcome is partial when an error is returned.
func (c *Coordinator) RunRound(ctx context.Context, r *aggregator.Round, subs []*protocol.SubmissionRecord, committee []protocol.ServerID) (*Outcome, error) {
	out := &Outcome{Round: r.ID(), Rejected: make(map[protocol.ClientID]error)}
	for _, rec := range subs {
		if err := r.Submit(rec); err != nil {
			if rec != nil {
				out.Rejected[rec.Client] = err
			}
			c.log.Warn().Err(err).Msg("submission rejected")
		}
	}
	report, err := r.CloseAndVerify(ctx)
	if err != nil {
		return out, err
	}
	out.Report = report
	if _, err := r.Aggregate(); err != nil {
		return out, err
	}
	fp, err := c.Decrypt(ctx, r, committee)
	if err != nil {
		return out, err
	}
	out.Result = fp
	out.Values = fp.Values()
	return out, nil
}

// Run executes a whole round for the given private inputs. Unknown clients
// are registered on the fly; every client encrypts and proves concurrently.
// Inputs that fail to encode are reported in Outcome.Rejected.
func (c *Coordinator) Run(ctx context.Context, inputs map[protocol.ClientID][]int64) (*Outcome, error) {
	defer c.cfg.Profiler.Track(time.Now(), "coordinator.Run")
	ids := make([]protocol.ClientID, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	clients := make([]*client.Client, len(ids))
	for i, id := range ids {
		cl, err := c.Client(id)
		if errors.Is(err, ErrUnknownClient) {
			cl, err = c.RegisterClient(id)
		}
		if err != nil {
			return nil, err
		}
		clients[i] = cl
	}

	r, err := c.NewRound()
	if err != nil {
		return nil, err
	}
	subs := make([]*protocol.SubmissionRecord, len(ids))
	errs := make([]error, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, cl := range clients {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			subs[i], errs[i] = cl.Submit(r.ID(), inputs[ids[i]])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = r.Abort(err)
		return nil, err
	}

	var ready []*protocol.SubmissionRecord
	for i, rec := range subs {
		if errs[i] != nil {
			c.log.Warn().Str("client", string(ids[i])).Err(errs[i]).Msg("client failed to encrypt")
			continue
		}
		ready = append(ready, rec)
	}
	out, err := c.RunRound(ctx, r, ready, nil)
	if out != nil {
		for i, e := range errs {
			if e != nil {
				out.Rejected[ids[i]] = e
			}
		}
	}
	if err != nil {
		return out, err
	}
	width := 0
	for _, id := range out.Report.Accepted {
		width = max(width, len(inputs[id]))
	}
	out.Values = out.Values[:width]
	return out, nil
}
