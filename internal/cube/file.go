package cube

import (
	"fmt"
	"os"

	"github.com/keflavich/frocc/internal/fits"
)

// AllocationError reports that the cube file could not be created or
// sized. It is fatal: nothing has been assembled yet and nothing can be.
type AllocationError struct {
	Path string
	Err  error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocating cube %s: %v", e.Path, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// SlabWriteError reports an I/O failure on an already-allocated cube.
// It is fatal for the run: the slab's bytes are in an undefined state
// and the cube is the single shared artifact.
type SlabWriteError struct {
	Stokes  int
	Channel int
	Err     error
}

func (e *SlabWriteError) Error() string {
	return fmt.Sprintf("cube slab (stokes %d, channel %d): %v", e.Stokes, e.Channel, e.Err)
}

func (e *SlabWriteError) Unwrap() error { return e.Err }

// File is an open cube file together with its geometry. All access is
// positioned via WriteAt/ReadAt so concurrent slab operations never
// share a file cursor.
type File struct {
	Geometry Geometry

	path string
	f    *os.File
}

// Allocate creates the cube file: the encoded header followed by a
// data region of exactly Geometry.TotalFileSize-HeaderSize bytes. The
// data region is materialized by seeking to the last byte and writing
// a single zero, leaving sparse allocation or lazy zero-fill to the
// filesystem; no intermediate buffer is held in memory.
func Allocate(path string, geom Geometry, header *fits.Header) (*File, error) {
	if hs := header.Size(); hs != geom.HeaderSize {
		return nil, &AllocationError{Path: path, Err: fmt.Errorf("header size %d does not match geometry %d", hs, geom.HeaderSize)}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &AllocationError{Path: path, Err: err}
	}
	if _, err := f.Write(header.Encode()); err != nil {
		f.Close()
		return nil, &AllocationError{Path: path, Err: err}
	}
	if _, err := f.Seek(geom.TotalFileSize-1, 0); err != nil {
		f.Close()
		return nil, &AllocationError{Path: path, Err: err}
	}
	if _, err := f.Write([]byte{0}); err != nil {
		f.Close()
		return nil, &AllocationError{Path: path, Err: err}
	}
	return &File{Geometry: geom, path: path, f: f}, nil
}

// Open opens an existing cube for slab access.
func Open(path string, geom Geometry) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &File{Geometry: geom, path: path, f: f}, nil
}

// Path returns the cube file path.
func (c *File) Path() string { return c.path }

// Close flushes and releases the cube file.
func (c *File) Close() error {
	if err := c.f.Sync(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

// WriteSlab writes one (stokes, channel) spatial plane, row-major,
// exactly SlabSize bytes at the slab's offset. Bytes outside the
// addressed slab are never touched, so writers for distinct pairs may
// run concurrently.
func (c *File) WriteSlab(stokes, channel int, data []float32) error {
	g := c.Geometry
	if !g.Contains(stokes, channel) {
		return &SlabWriteError{Stokes: stokes, Channel: channel, Err: fmt.Errorf("outside cube %dx%d", g.StokesDim, g.ChannelDim)}
	}
	if int64(len(data))*g.ElementSize != g.SlabSize() {
		return &SlabWriteError{Stokes: stokes, Channel: channel, Err: fmt.Errorf("slab has %d samples, want %d", len(data), g.XDim*g.YDim)}
	}
	if _, err := c.f.WriteAt(fits.EncodeFloat32(data), g.OffsetOf(stokes, channel)); err != nil {
		return &SlabWriteError{Stokes: stokes, Channel: channel, Err: err}
	}
	return nil
}

// ReadSlab is the mirror of WriteSlab.
func (c *File) ReadSlab(stokes, channel int) ([]float32, error) {
	g := c.Geometry
	if !g.Contains(stokes, channel) {
		return nil, &SlabWriteError{Stokes: stokes, Channel: channel, Err: fmt.Errorf("outside cube %dx%d", g.StokesDim, g.ChannelDim)}
	}
	buf := make([]byte, g.SlabSize())
	if _, err := c.f.ReadAt(buf, g.OffsetOf(stokes, channel)); err != nil {
		return nil, &SlabWriteError{Stokes: stokes, Channel: channel, Err: err}
	}
	return fits.DecodeFloat32(buf), nil
}
