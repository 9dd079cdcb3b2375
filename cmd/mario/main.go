package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/asu-crypto/mario/coordinator"
	"github.com/asu-crypto/mario/he"
	"github.com/asu-crypto/mario/params"
	"github.com/asu-crypto/mario/prof"
	"github.com/asu-crypto/mario/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	paramsPath := flag.String("params", params.DefaultPath, "parameter file")
	preset := flag.String("preset", "demo", "parameter preset ("+strings.Join(params.PresetNames(), ", ")+")")
	nClients := flag.Int("clients", 3, "number of clients")
	nServers := flag.Int("servers", 3, "number of decryption servers")
	threshold := flag.Int("threshold", 2, "decryption threshold")
	length := flag.Int("len", 8, "length of each client vector")
	malicious := flag.String("malicious", "", "comma-separated indexes (1-based) of clients that forge their ciphertext")
	offline := flag.String("offline", "", "comma-separated ids of servers that never answer")
	committeeFlag := flag.String("committee", "", "comma-separated server ids of the decryption committee (default: first t)")
	semiHonest := flag.Bool("semi-honest", false, "skip proof verification")
	timeout := flag.Duration("timeout", 30*time.Second, "share collection timeout")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	p, err := params.LoadOrPreset(*paramsPath, *preset)
	if err != nil {
		log.Fatal().Err(err).Msg("load parameters")
	}
	bad, err := parseList(*malicious)
	if err != nil {
		log.Fatal().Err(err).Msg("parse -malicious")
	}
	down, err := parseList(*offline)
	if err != nil {
		log.Fatal().Err(err).Msg("parse -offline")
	}
	members, err := parseList(*committeeFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("parse -committee")
	}

	timings := prof.NewRecorder()
	coord, err := coordinator.New(coordinator.Config{
		Params:     p,
		Servers:    *nServers,
		Threshold:  *threshold,
		Timeout:    *timeout,
		SemiHonest: *semiHonest,
		Logger:     log.Logger,
		Profiler:   timings,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("setup")
	}
	for _, id := range down {
		if err := coord.SetOnline(protocol.ServerID(id), false); err != nil {
			log.Fatal().Err(err).Msg("offline server")
		}
	}
	var committee []protocol.ServerID
	for _, id := range members {
		committee = append(committee, protocol.ServerID(id))
	}

	round, err := coord.NewRound()
	if err != nil {
		log.Fatal().Err(err).Msg("open round")
	}
	log.Info().Str("round", round.ID().String()).Int("N", p.N()).Int64("bound", p.InputBound).Msg("round opened")

	inputs := make([][]int64, *nClients)
	subs := make([]*protocol.SubmissionRecord, *nClients)
	g := new(errgroup.Group)
	for i := range inputs {
		inputs[i] = make([]int64, *length)
		for j := range inputs[i] {
			inputs[i][j] = int64((i+1)*(j+1)) % (p.InputBound + 1)
		}
		cl, err := coord.RegisterClient(protocol.ClientID(fmt.Sprintf("client-%d", i+1)))
		if err != nil {
			log.Fatal().Err(err).Msg("register client")
		}
		g.Go(func() error {
			rec, err := cl.Submit(round.ID(), inputs[i])
			subs[i] = rec
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("client encryption")
	}

	cheaters := make(map[int]bool)
	for _, idx := range bad {
		if idx < 1 || int(idx) > *nClients {
			log.Fatal().Uint64("client", idx).Msg("malicious index out of range")
		}
		cheaters[int(idx)-1] = true
		if err := forge(coord, subs[idx-1]); err != nil {
			log.Fatal().Err(err).Msg("forge submission")
		}
		log.Warn().Str("client", string(subs[idx-1].Client)).Msg("client forged its ciphertext")
	}

	out, err := coord.RunRound(context.Background(), round, subs, committee)
	if err != nil {
		log.Error().Err(err).Msg("round failed")
		printTimings(timings)
		os.Exit(1)
	}

	expected := make([]int64, *length)
	for i, in := range inputs {
		if cheaters[i] && !*semiHonest {
			continue
		}
		for j, v := range in {
			expected[j] += v
		}
	}
	got := out.Values[:*length]
	for _, ex := range out.Report.Excluded {
		log.Info().Str("client", string(ex.Client)).Int("block", ex.Failure.Block).Str("reason", ex.Failure.Reason).Msg("excluded")
	}
	if err := coord.Decryptor().VerifyTranscript(out.Result); err != nil {
		log.Error().Err(err).Msg("decryption transcript does not verify")
	}
	fmt.Printf("sum      = %v\n", got)
	fmt.Printf("expected = %v\n", expected)
	if !*semiHonest && fmt.Sprint(got) != fmt.Sprint(expected) {
		log.Error().Msg("sum mismatch")
		os.Exit(1)
	}
	printTimings(timings)
}

// forge replaces the first block of rec with an encryption of a large
// vector while keeping the original proofs.
func forge(coord *coordinator.Coordinator, rec *protocol.SubmissionRecord) error {
	hp := coord.PublicParams().HE
	pt := make([]int64, hp.N())
	for i := range pt {
		pt[i] = hp.InputBound * 4
	}
	ct, _, err := he.NewEncryptor(hp, coord.PublicKey()).Encrypt(pt)
	if err != nil {
		return err
	}
	rec.Ciphertexts[0] = ct
	return nil
}

func parseList(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	var out []uint64
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func printTimings(rec *prof.Recorder) {
	for _, st := range prof.Summarize(rec.Snapshot()) {
		fmt.Printf("%-32s n=%-4d mean=%-12v median=%-12v total=%v\n", st.Label, st.Count, st.Mean, st.Median, st.Total)
	}
}
