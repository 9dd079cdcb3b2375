// Package prof collects wall-clock timings of the expensive protocol steps.
package prof

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Entry represents a single timing measurement.
type Entry struct {
	Label string
	Dur   time.Duration
}

// Stat summarises the measurements of one label.
type Stat struct {
	Label  string
	Count  int
	Mean   time.Duration
	StdDev time.Duration
	Median time.Duration
	Total  time.Duration
}

// Recorder collects timing entries. A nil *Recorder is valid and discards
// everything, so components only pay for timings when a caller asks for them.
type Recorder struct {
	mu     sync.Mutex
	record []Entry
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Track logs the duration since start with the given name.
// Use as: defer rec.Track(time.Now(), "name").
func (r *Recorder) Track(start time.Time, name string) {
	if r == nil {
		return
	}
	elapsed := time.Since(start)
	r.mu.Lock()
	r.record = append(r.record, Entry{Label: name, Dur: elapsed})
	r.mu.Unlock()
}

// Snapshot returns a copy of the collected timing entries.
func (r *Recorder) Snapshot() []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.record))
	copy(out, r.record)
	return out
}

// SnapshotAndReset returns the collected timing entries and clears them.
func (r *Recorder) SnapshotAndReset() []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.record
	r.record = nil
	return out
}

// Summarize groups entries by label, sorted by label.
func Summarize(entries []Entry) []Stat {
	byLabel := make(map[string][]float64)
	for _, e := range entries {
		byLabel[e.Label] = append(byLabel[e.Label], float64(e.Dur))
	}
	out := make([]Stat, 0, len(byLabel))
	for label, xs := range byLabel {
		sort.Float64s(xs)
		mean, std := stat.MeanStdDev(xs, nil)
		if len(xs) < 2 {
			std = 0
		}
		var total float64
		for _, x := range xs {
			total += x
		}
		out = append(out, Stat{
			Label:  label,
			Count:  len(xs),
			Mean:   time.Duration(mean),
			StdDev: time.Duration(std),
			Median: time.Duration(stat.Quantile(0.5, stat.Empirical, xs, nil)),
			Total:  time.Duration(total),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
