package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/asu-crypto/mario/aggregator"
	"github.com/asu-crypto/mario/params"
	"github.com/asu-crypto/mario/prof"
	"github.com/asu-crypto/mario/protocol"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	p, err := params.Preset("test")
	require.NoError(t, err)
	c, err := New(Config{Params: p, Servers: 3, Threshold: 2, Timeout: 10 * time.Second})
	require.NoError(t, err)
	return c
}

func submissions(t *testing.T, c *Coordinator, round protocol.RoundID, inputs map[protocol.ClientID][]int64, order ...protocol.ClientID) []*protocol.SubmissionRecord {
	t.Helper()
	var out []*protocol.SubmissionRecord
	for _, id := range order {
		cl, err := c.Client(id)
		if err != nil {
			cl, err = c.RegisterClient(id)
		}
		require.NoError(t, err)
		rec, err := cl.Submit(round, inputs[id])
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func TestHonestRound(t *testing.T) {
	c := newCoordinator(t)
	out, err := c.Run(context.Background(), map[protocol.ClientID][]int64{
		"client-1": {1, 2},
		"client-2": {3, 4},
		"client-3": {5, 6},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{9, 12}, out.Values)
	require.Len(t, out.Report.Accepted, 3)
	require.Empty(t, out.Report.Excluded)
	require.Empty(t, out.Rejected)
	require.NoError(t, c.Decryptor().VerifyTranscript(out.Result))

	r, ok := c.Round(out.Round)
	require.True(t, ok)
	require.Equal(t, aggregator.Finalized, r.State())
	res, err := r.Result()
	require.NoError(t, err)
	require.Same(t, out.Result, res)
}

func TestCorruptedClientExcluded(t *testing.T) {
	cases := map[string]func(t *testing.T, c *Coordinator, round protocol.RoundID, rec *protocol.SubmissionRecord){
		// client-2 swaps its ciphertext for an encryption of other in-range
		// values while keeping its proofs.
		"ciphertext": func(t *testing.T, c *Coordinator, round protocol.RoundID, rec *protocol.SubmissionRecord) {
			forged := submissions(t, c, round, map[protocol.ClientID][]int64{"client-2": {30, 40}}, "client-2")[0]
			rec.Ciphertexts[0] = forged.Ciphertexts[0]
		},
		"encryptionDigest": func(t *testing.T, _ *Coordinator, _ protocol.RoundID, rec *protocol.SubmissionRecord) {
			rec.Proofs[0].Encryption.Digest[0] ^= 1
		},
		"encryptionResponse": func(t *testing.T, _ *Coordinator, _ protocol.RoundID, rec *protocol.SubmissionRecord) {
			rec.Proofs[0].Encryption.Z[0][0]++
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			c := newCoordinator(t)
			r, err := c.NewRound()
			require.NoError(t, err)
			inputs := map[protocol.ClientID][]int64{"client-1": {1, 2}, "client-2": {3, 4}, "client-3": {5, 6}}
			subs := submissions(t, c, r.ID(), inputs, "client-1", "client-2", "client-3")
			corrupt(t, c, r.ID(), subs[1])

			out, err := c.RunRound(context.Background(), r, subs, nil)
			require.NoError(t, err)
			require.Equal(t, []int64{6, 8}, out.Values[:2])
			require.Equal(t, []protocol.ClientID{"client-1", "client-3"}, out.Report.Accepted)
			require.Len(t, out.Report.Excluded, 1)
			require.Equal(t, protocol.ClientID("client-2"), out.Report.Excluded[0].Client)
			require.Equal(t, 0, out.Report.Excluded[0].Failure.Block)
		})
	}
}

func TestEmptyAggregate(t *testing.T) {
	c := newCoordinator(t)
	r, err := c.NewRound()
	require.NoError(t, err)
	subs := submissions(t, c, r.ID(), map[protocol.ClientID][]int64{"a": {1}, "b": {2}}, "a", "b")
	subs[0].Proofs[0], subs[1].Proofs[0] = subs[1].Proofs[0], subs[0].Proofs[0]

	out, err := c.RunRound(context.Background(), r, subs, nil)
	var empty *protocol.EmptyAggregateError
	require.ErrorAs(t, err, &empty)
	require.Equal(t, 2, empty.Excluded)
	require.Nil(t, out.Result)
	require.Equal(t, aggregator.Aborted, r.State())
}

func TestThresholdNotMet(t *testing.T) {
	c := newCoordinator(t)
	require.NoError(t, c.SetOnline(2, false))
	out, err := c.Run(context.Background(), map[protocol.ClientID][]int64{"a": {1, 2}, "b": {3, 4}})
	var notMet *protocol.ThresholdNotMetError
	require.ErrorAs(t, err, &notMet)
	require.Equal(t, 1, notMet.Valid)
	require.Equal(t, []protocol.ServerID{2}, notMet.Missing)
	require.Nil(t, out.Values)

	r, ok := c.Round(out.Round)
	require.True(t, ok)
	require.Equal(t, aggregator.Aborted, r.State())
	_, err = r.Result()
	require.ErrorAs(t, err, &notMet)

	// Another committee avoids the offline server.
	r2, err := c.NewRound()
	require.NoError(t, err)
	subs := submissions(t, c, r2.ID(), map[protocol.ClientID][]int64{"a": {1, 2}, "b": {3, 4}}, "a", "b")
	out, err = c.RunRound(context.Background(), r2, subs, []protocol.ServerID{1, 3})
	require.NoError(t, err)
	require.Equal(t, []int64{4, 6}, out.Values[:2])

	require.NoError(t, c.SetOnline(2, true))
	require.Error(t, c.SetOnline(9, false))
}

func TestRunReportsEncodingErrors(t *testing.T) {
	c := newCoordinator(t)
	bound := c.PublicParams().HE.InputBound
	out, err := c.Run(context.Background(), map[protocol.ClientID][]int64{
		"ok":    {1, 2, 3},
		"big":   {bound + 1},
		"empty": {},
		"other": {4},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{5, 2, 3}, out.Values)
	require.Len(t, out.Rejected, 2)
	var enc *protocol.EncodingError
	require.ErrorAs(t, out.Rejected["big"], &enc)
	require.ErrorAs(t, out.Rejected["empty"], &enc)
}

func TestProfilerRecordsStages(t *testing.T) {
	p, err := params.Preset("test")
	require.NoError(t, err)
	timings := prof.NewRecorder()
	c, err := New(Config{Params: p, Servers: 3, Threshold: 2, Profiler: timings})
	require.NoError(t, err)
	_, err = c.Run(context.Background(), map[protocol.ClientID][]int64{"a": {1}, "b": {2}})
	require.NoError(t, err)

	counts := map[string]int{}
	for _, st := range prof.Summarize(timings.SnapshotAndReset()) {
		counts[st.Label] = st.Count
	}
	require.Equal(t, 2, counts["client.Encrypt"])
	require.Equal(t, 2, counts["threshold.PartialDecrypt"])
	for _, label := range []string{"aggregator.CloseAndVerify", "aggregator.Aggregate", "threshold.Collect", "coordinator.Decrypt", "coordinator.Run"} {
		require.Equal(t, 1, counts[label], label)
	}
	require.Empty(t, timings.Snapshot())
}

func TestRegistries(t *testing.T) {
	c := newCoordinator(t)
	require.Equal(t, []protocol.ServerID{1, 2, 3}, c.Servers())
	require.Equal(t, []protocol.ServerID{1, 2}, c.DefaultCommittee())
	_, ok := c.Server(3)
	require.True(t, ok)

	_, err := c.RegisterClient("a")
	require.NoError(t, err)
	_, err = c.RegisterClient("a")
	require.Error(t, err)
	_, err = c.Client("nobody")
	require.ErrorIs(t, err, ErrUnknownClient)

	p, _ := params.Preset("test")
	_, err = New(Config{Params: p, Servers: 2, Threshold: 3})
	require.Error(t, err)
}
