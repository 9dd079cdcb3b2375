// Package threshold runs the decryption phase of a round: committee members
// publish partial decryptions of the aggregate with proofs of correctness,
// and the decryptor verifies them and recombines the plaintext once a full
// committee of valid shares is available.
package threshold

import (
	"fmt"
	"sort"
	"time"

	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/prof"
	"github.com/asu-crypto/mario/protocol"
	"github.com/asu-crypto/mario/zkp"
	"github.com/rs/zerolog"
)

// Request asks a committee to decrypt the aggregate blocks of a round.
//
// The committee has exactly t members. Each member multiplies its key share
// by its Lagrange coefficient for this committee before adding smudging
// noise, so a share only recombines with the other members of the committee
// it was computed for. Extra shares from other servers cannot be mixed in;
// a larger set of available servers is served by choosing a committee of t
// among them.
type Request struct {
	Round     protocol.RoundID
	Blocks    []*he.Ciphertext
	Committee []protocol.ServerID
}

// Validate checks that the committee has exactly t distinct non-zero members
// and that every block is well formed.
func (req *Request) Validate(hp *he.Parameters, t int) error {
	if req == nil {
		return fmt.Errorf("threshold: nil request")
	}
	if len(req.Blocks) == 0 {
		return fmt.Errorf("threshold: request without blocks")
	}
	if len(req.Committee) != t {
		return fmt.Errorf("threshold: committee of %d servers, need exactly %d", len(req.Committee), t)
	}
	seen := make(map[protocol.ServerID]bool, len(req.Committee))
	for _, id := range req.Committee {
		if id == 0 {
			return fmt.Errorf("threshold: server id 0 is not a valid evaluation point")
		}
		if seen[id] {
			return fmt.Errorf("threshold: server %d appears twice in the committee", id)
		}
		seen[id] = true
	}
	for i, ct := range req.Blocks {
		if err := hp.CheckCiphertext(ct); err != nil {
			return fmt.Errorf("threshold: block %d: %w", i, err)
		}
	}
	return nil
}

// Contains reports whether id is a committee member.
func (req *Request) Contains(id protocol.ServerID) bool {
	for _, c := range req.Committee {
		if c == id {
			return true
		}
	}
	return false
}

// Lambda returns the Lagrange coefficient at zero of id within the committee.
func (req *Request) Lambda(q uint64, id protocol.ServerID) (uint64, error) {
	points := make([]uint64, len(req.Committee))
	for i, c := range req.Committee {
		points[i] = uint64(c)
	}
	return he.LagrangeCoefficient(q, points, uint64(id))
}

// PartialDecryptionShare is one server's answer to a Request: a decryption
// share and a proof per aggregate block.
type PartialDecryptionShare struct {
	Round  protocol.RoundID
	Server protocol.ServerID
	Shares []*he.DecryptionShare
	Proofs []*zkp.DecryptionProof
}

// ServerConfig configures a decryption Server.
type ServerConfig struct {
	Params          *he.Parameters
	Key             *he.KeyShare
	VerificationKey *he.VerificationKey
	Logger          zerolog.Logger
	Profiler        *prof.Recorder
}

// Server holds one key share.
type Server struct {
	hp    *he.Parameters
	key   *he.KeyShare
	vk    *he.VerificationKey
	log   zerolog.Logger
	timer *prof.Recorder
}

// NewServer returns a decryption server for the given share.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Params == nil || cfg.Key == nil || cfg.VerificationKey == nil {
		return nil, fmt.Errorf("threshold: incomplete server config")
	}
	if cfg.Key.Point == 0 || cfg.Key.Point != cfg.VerificationKey.Point {
		return nil, fmt.Errorf("threshold: key share point %d does not match verification key %d", cfg.Key.Point, cfg.VerificationKey.Point)
	}
	return &Server{
		hp:    cfg.Params,
		key:   cfg.Key,
		vk:    cfg.VerificationKey,
		log:   cfg.Logger.With().Str("component", "threshold").Uint64("server", cfg.Key.Point).Logger(),
		timer: cfg.Profiler,
	}, nil
}

// ID returns the server identifier (its Shamir point).
func (s *Server) ID() protocol.ServerID { return protocol.ServerID(s.key.Point) }

// PartialDecrypt answers req: for every block it computes
// h = tsk * (lambda * c1) + e_smudge and proves it against the server's
// verification key. The proof of block b is bound to (round, server, b).
func (s *Server) PartialDecrypt(req *Request) (*PartialDecryptionShare, error) {
	defer s.timer.Track(time.Now(), "threshold.PartialDecrypt")
	if req == nil {
		return nil, fmt.Errorf("threshold: nil request")
	}
	if err := req.Validate(s.hp, len(req.Committee)); err != nil {
		return nil, err
	}
	if !req.Contains(s.ID()) {
		return nil, fmt.Errorf("threshold: server %d is not in the committee", s.ID())
	}
	lambda, err := req.Lambda(s.hp.Q, s.ID())
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	out := &PartialDecryptionShare{
		Round:  req.Round,
		Server: s.ID(),
		Shares: make([]*he.DecryptionShare, len(req.Blocks)),
		Proofs: make([]*zkp.DecryptionProof, len(req.Blocks)),
	}
	for b, ct := range req.Blocks {
		share, noise, err := he.PartialDecrypt(s.hp, s.key, lambda, ct)
		if err != nil {
			return nil, fmt.Errorf("threshold: block %d: %w", b, err)
		}
		proof, err := zkp.ProvePartialDecryption(s.hp, s.key, s.vk, ct, share, noise, protocol.ServerBinding(req.Round, s.ID(), b))
		if err != nil {
			return nil, fmt.Errorf("threshold: block %d: %w", b, err)
		}
		out.Shares[b], out.Proofs[b] = share, proof
	}
	s.log.Debug().Str("round", req.Round.String()).Int("blocks", len(req.Blocks)).Msg("partial decryption ready")
	return out, nil
}

// DecryptionTranscript is everything needed to re-check a final plaintext:
// the request and the committee's shares with their proofs.
type DecryptionTranscript struct {
	Request *Request
	Shares  []*PartialDecryptionShare
}

// FinalPlaintext is the decrypted aggregate of a round, block after block.
type FinalPlaintext struct {
	Round      protocol.RoundID
	Transcript *DecryptionTranscript
	values     []int64
}

// Values returns a copy of the decrypted coefficients.
func (fp *FinalPlaintext) Values() []int64 {
	return append([]int64(nil), fp.values...)
}

// Len returns the number of decrypted coefficients.
func (fp *FinalPlaintext) Len() int { return len(fp.values) }

func sortedIDs(ids []protocol.ServerID) []protocol.ServerID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
