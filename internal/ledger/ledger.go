// Package ledger accumulates the per-channel statistics table written
// next to the assembled cube.
package ledger

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
)

// ChannelRecord is one channel's statistics row. Noise and peak fields
// are NaN when the estimate is unavailable (flagged or missing source).
type ChannelRecord struct {
	// ChannelIndex is the 0-based channel position inside the cube.
	ChannelIndex int
	SourcePath   string
	FrequencyHz  float64
	NoiseStokesI float64
	NoiseStokesV float64
	PeakStokesI  float64
	Flagged      bool
}

// Ledger collects channel records and serializes them as a
// tab-separated table. Rows come out in catalog order (lexicographic
// over source filenames), which matches numeric channel order only for
// zero-padded naming schemes; that ordering is part of the output
// contract. Record is safe for concurrent workers.
type Ledger struct {
	mu   sync.Mutex
	rows []*ChannelRecord
}

// New sizes the ledger for n catalog entries.
func New(n int) *Ledger {
	return &Ledger{rows: make([]*ChannelRecord, n)}
}

// Record stores rec at its catalog position pos.
func (l *Ledger) Record(pos int, rec ChannelRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := rec
	l.rows[pos] = &r
}

// Rows returns the recorded rows in catalog order. Positions never
// recorded are skipped.
func (l *Ledger) Rows() []ChannelRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ChannelRecord, 0, len(l.rows))
	for _, r := range l.rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

var legend = []string{
	"chanNo",
	"frequency [MHz]",
	"rmsStokesI [uJy/beam]",
	"rmsStokesV [uJy/beam]",
	"maxStokesI [uJy/beam]",
}

// Finalize writes the table to path: the fixed five-column legend, one
// row per recorded channel. Frequencies convert to MHz, noise and peak
// to uJy/beam, all rounded to 4 decimals; unavailable values print as
// NaN. Call only after all workers have recorded.
func (l *Ledger) Finalize(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing statistics file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write(legend); err != nil {
		return err
	}
	for _, rec := range l.Rows() {
		row := []string{
			strconv.Itoa(rec.ChannelIndex),
			formatScaled(rec.FrequencyHz, 1e-6),
			formatScaled(rec.NoiseStokesI, 1e6),
			formatScaled(rec.NoiseStokesV, 1e6),
			formatScaled(rec.PeakStokesI, 1e6),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// formatScaled converts to display units and rounds to 4 decimals.
func formatScaled(v, scale float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	r := math.Round(v*scale*1e4) / 1e4
	return strconv.FormatFloat(r, 'f', -1, 64)
}
