// Package assemble drives cube assembly: size the cube from the
// channel catalog, allocate the placeholder file, then fan channels out
// to workers that gate and copy each one's polarization planes.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/keflavich/frocc/internal/catalog"
	"github.com/keflavich/frocc/internal/cube"
	"github.com/keflavich/frocc/internal/fits"
	"github.com/keflavich/frocc/internal/fsutil"
	"github.com/keflavich/frocc/internal/ledger"
	"github.com/keflavich/frocc/internal/logging"
	"github.com/keflavich/frocc/internal/noise"
	"github.com/keflavich/frocc/internal/storage"
)

// State is the assembler's phase. A run moves Sizing -> Allocating ->
// Processing -> Finalized; Aborted is reachable from any phase on an
// unrecoverable error.
type State int

const (
	StateSizing State = iota
	StateAllocating
	StateProcessing
	StateFinalized
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateSizing:
		return "sizing"
	case StateAllocating:
		return "allocating"
	case StateProcessing:
		return "processing"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// SourceUnavailableError marks a channel whose image is missing,
// unopenable or malformed. It is recovered locally: the channel is
// flagged and the run continues. Missing channels are routine in real
// datasets, not exceptional.
type SourceUnavailableError struct {
	Path string
	Err  error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("channel source %s unavailable: %v", e.Path, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// QualityFlagError marks a channel the noise gate rejected. Like a
// missing source it is recovered locally by blanking the channel.
type QualityFlagError struct {
	StdStokesV float64
}

func (e *QualityFlagError) Error() string {
	return fmt.Sprintf("stokes V rms %g below threshold", e.StdStokesV)
}

// Options configures one assembly run.
type Options struct {
	ImagesDir      string
	Pattern        string
	Marker         string
	CubePath       string // empty: cube.<prefix of lowest channel file>.fits
	StatisticsPath string
	ObjectName     string // OBJECT card of the cube header
	Workers        int
}

// Summary reports a finished run.
type Summary struct {
	RunID          string
	State          State
	CubePath       string
	StatisticsPath string
	Geometry       cube.Geometry
	Channels       int
	Flagged        int
	Duration       time.Duration
}

// Assembler owns the cube file for the duration of one run.
type Assembler struct {
	opts  Options
	log   *slog.Logger
	store *storage.Store // optional run persistence

	mu    sync.Mutex
	state State
}

// New returns an Assembler. store may be nil.
func New(opts Options, logger *slog.Logger, store *storage.Store) *Assembler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Assembler{opts: opts, log: logger, store: store}
}

// State returns the current phase.
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Assembler) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Run executes the full assembly and always produces the statistics
// table unless a fatal error aborts the run first.
func (a *Assembler) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	runID := newRunID()

	sum, err := a.run(ctx, runID)
	if err != nil {
		a.setState(StateAborted)
		logging.LogRunError(a.log, runID, time.Since(start), err)
		_ = a.store.RecordRunResult(runID, "aborted", 0, err.Error())
		return nil, err
	}
	sum.RunID = runID
	sum.State = StateFinalized
	sum.Duration = time.Since(start)
	logging.LogRunComplete(a.log, runID, sum.Duration, sum.Flagged)
	_ = a.store.RecordRunResult(runID, "finalized", sum.Flagged, "")
	return sum, nil
}

func (a *Assembler) run(ctx context.Context, runID string) (*Summary, error) {
	a.setState(StateSizing)
	cat, err := catalog.Discover(a.opts.ImagesDir, a.opts.Pattern, a.opts.Marker)
	if err != nil {
		return nil, err
	}

	geom, header, err := a.size(cat)
	if err != nil {
		return nil, err
	}

	cubePath := a.opts.CubePath
	if cubePath == "" {
		cubePath = defaultCubeName(cat.Reference().Path)
	}

	a.setState(StateAllocating)
	if free, err := fsutil.FreeSpace(cubePath); err == nil && free < geom.TotalFileSize {
		return nil, &cube.AllocationError{Path: cubePath,
			Err: fmt.Errorf("need %d bytes, %d free", geom.TotalFileSize, free)}
	}
	if mb, err := fsutil.AvailableMemory(); err == nil {
		cubeMB := geom.TotalFileSize / (1 << 20)
		if cubeMB > mb {
			a.log.Info("cube exceeds available memory, staying out of core",
				"cube_mb", cubeMB, "mem_mb", mb)
		}
	}
	a.log.Info("allocating cube",
		"path", cubePath,
		"x", geom.XDim, "y", geom.YDim,
		"channels", geom.ChannelDim, "stokes", geom.StokesDim,
		"bytes", geom.TotalFileSize,
	)
	cubeFile, err := cube.Allocate(cubePath, geom, header)
	if err != nil {
		return nil, err
	}
	defer cubeFile.Close()

	_ = a.store.RecordRunStart(storage.RunRecord{
		ID:             runID,
		ImagesDir:      a.opts.ImagesDir,
		CubePath:       cubePath,
		StatisticsPath: a.opts.StatisticsPath,
		Status:         "processing",
		ChannelCount:   len(cat.Channels),
	})
	logging.LogRunStart(a.log, runID, a.opts.ImagesDir, cubePath, len(cat.Channels))

	a.setState(StateProcessing)
	led := ledger.New(len(cat.Channels))
	if err := a.processAll(ctx, runID, cubeFile, cat, led); err != nil {
		return nil, err
	}

	if err := cubeFile.Close(); err != nil {
		return nil, fmt.Errorf("closing cube: %w", err)
	}
	if err := led.Finalize(a.opts.StatisticsPath); err != nil {
		return nil, err
	}
	a.log.Info("statistics file written", "path", a.opts.StatisticsPath)

	flagged := 0
	for _, rec := range led.Rows() {
		if rec.Flagged {
			flagged++
		}
	}
	a.setState(StateFinalized)
	return &Summary{
		CubePath:       cubePath,
		StatisticsPath: a.opts.StatisticsPath,
		Geometry:       geom,
		Channels:       len(cat.Channels),
		Flagged:        flagged,
	}, nil
}

// size derives the cube geometry and header from the lowest channel's
// image. The reference header is copied verbatim apart from the object
// name, the channel axis length and the channel axis type.
func (a *Assembler) size(cat *catalog.Catalog) (cube.Geometry, *fits.Header, error) {
	ref := cat.Reference()
	a.log.Info("sizing cube from reference image", "path", ref.Path)
	img, err := fits.OpenImage(ref.Path)
	if err != nil {
		return cube.Geometry{}, nil, fmt.Errorf("reference image: %w", err)
	}
	defer img.Close()

	xDim, yDim := img.SpatialDims()
	channelDim := cat.ChannelCount()

	header := img.Header.Clone()
	if a.opts.ObjectName != "" {
		header.SetString("OBJECT", a.opts.ObjectName)
	}
	header.SetInt("NAXIS", 4)
	header.SetInt("NAXIS1", xDim)
	header.SetInt("NAXIS2", yDim)
	header.SetInt("NAXIS3", channelDim)
	header.SetInt("NAXIS4", cube.StokesDim)
	header.SetString("CTYPE3", "FREQ")

	geom := cube.NewGeometry(xDim, yDim, channelDim, header.Size())
	return geom, header, nil
}

// processAll fans catalog entries out to the worker pool. Channel
// processing order carries no data dependency: slabs for distinct
// channels occupy disjoint byte ranges, so workers only coordinate on
// the ledger. The first slab-level failure cancels the pool.
func (a *Assembler) processAll(ctx context.Context, runID string, cubeFile *cube.File, cat *catalog.Catalog, led *ledger.Ledger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	var wg sync.WaitGroup
	var errOnce sync.Once
	var fatal error

	abort := func(err error) {
		errOnce.Do(func() {
			fatal = err
			cancel()
		})
	}

	nanSlab := make([]float32, cubeFile.Geometry.XDim*cubeFile.Geometry.YDim)
	for i := range nanSlab {
		nanSlab[i] = float32(math.NaN())
	}

	for w := 0; w < a.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range jobs {
				if ctx.Err() != nil {
					return
				}
				if err := a.processChannel(runID, cubeFile, cat.Channels[pos], pos, led, nanSlab); err != nil {
					abort(err)
					return
				}
			}
		}()
	}

	for pos := range cat.Channels {
		select {
		case jobs <- pos:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	if fatal != nil {
		return fatal
	}
	return ctx.Err()
}

// processChannel makes the quality decision for one channel and writes
// its four polarization slabs. Only cube-level I/O errors are returned;
// a missing or corrupt source flags the channel and returns nil.
func (a *Assembler) processChannel(runID string, cubeFile *cube.File, ch catalog.Channel, pos int, led *ledger.Ledger, nanSlab []float32) error {
	nan := math.NaN()
	rec := ledger.ChannelRecord{
		ChannelIndex: ch.Index,
		SourcePath:   ch.Path,
		FrequencyHz:  nan,
		NoiseStokesI: nan,
		NoiseStokesV: nan,
		PeakStokesI:  nan,
	}

	err := a.copyChannel(cubeFile, ch, &rec)
	switch {
	case err == nil:
	case recoverable(err):
		a.log.Warn("flagging channel", "channel", ch.Index, "source", ch.Path, "reason", err)
		rec.Flagged = true
		if err := a.blankChannel(cubeFile, ch.Index, nanSlab); err != nil {
			return err
		}
	default:
		return err
	}

	led.Record(pos, rec)
	_ = a.store.RecordChannelStat(runID, storage.ChannelStat{
		ChanNo:      rec.ChannelIndex,
		SourcePath:  rec.SourcePath,
		FrequencyHz: rec.FrequencyHz,
		RMSStokesI:  rec.NoiseStokesI,
		RMSStokesV:  rec.NoiseStokesV,
		MaxStokesI:  rec.PeakStokesI,
		Flagged:     rec.Flagged,
	})
	decision := noise.Accept
	if rec.Flagged {
		decision = noise.Flag
	}
	logging.LogChannel(a.log, ch.Index, ch.Path, decision.String(), rec.NoiseStokesV)
	return nil
}

// copyChannel reads the source image, gates on Stokes V and either
// copies all four planes or blanks them. It returns a
// SourceUnavailableError for recoverable per-channel problems and a
// SlabWriteError for fatal cube I/O.
func (a *Assembler) copyChannel(cubeFile *cube.File, ch catalog.Channel, rec *ledger.ChannelRecord) error {
	img, err := fits.OpenImage(ch.Path)
	if err != nil {
		return &SourceUnavailableError{Path: ch.Path, Err: err}
	}
	defer img.Close()

	freq, err := img.Frequency()
	if err != nil {
		return &SourceUnavailableError{Path: ch.Path, Err: err}
	}
	rec.FrequencyHz = freq

	planeV, err := img.ReadPlane(3)
	if err != nil {
		return &SourceUnavailableError{Path: ch.Path, Err: err}
	}
	stdV := noise.EstimateStd(planeV)

	if noise.Evaluate(stdV) == noise.Flag {
		// The cascade records the Stokes-V estimate as unavailable,
		// not as the failing value.
		return &QualityFlagError{StdStokesV: stdV}
	}
	rec.NoiseStokesV = stdV

	planeI, err := img.ReadPlane(0)
	if err != nil {
		return &SourceUnavailableError{Path: ch.Path, Err: err}
	}
	rec.NoiseStokesI = noise.EstimateStd(planeI)
	rec.PeakStokesI = noise.Peak(planeI)

	if err := cubeFile.WriteSlab(0, ch.Index, planeI); err != nil {
		return err
	}
	for _, stokes := range []int{1, 2} {
		plane, err := img.ReadPlane(stokes)
		if err != nil {
			return &SourceUnavailableError{Path: ch.Path, Err: err}
		}
		if err := cubeFile.WriteSlab(stokes, ch.Index, plane); err != nil {
			return err
		}
	}
	return cubeFile.WriteSlab(3, ch.Index, planeV)
}

// blankChannel writes NaN into all four polarization slabs.
func (a *Assembler) blankChannel(cubeFile *cube.File, channel int, nanSlab []float32) error {
	for stokes := 0; stokes < cube.StokesDim; stokes++ {
		if err := cubeFile.WriteSlab(stokes, channel, nanSlab); err != nil {
			return err
		}
	}
	return nil
}

// recoverable reports whether err flags the channel instead of
// aborting the run.
func recoverable(err error) bool {
	var srcErr *SourceUnavailableError
	var gateErr *QualityFlagError
	return errors.As(err, &srcErr) || errors.As(err, &gateErr)
}

// defaultCubeName derives the cube filename from the lowest channel
// file: cube.<first dot-separated token>.fits, placed next to nothing
// in particular (the current directory), matching the long-standing
// pipeline convention.
func defaultCubeName(referencePath string) string {
	base := filepath.Base(referencePath)
	prefix := strings.SplitN(base, ".", 2)[0]
	return "cube." + prefix + ".fits"
}

func newRunID() string {
	ts := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("run-%s-%04d", ts, time.Now().UnixNano()%10000)
}
