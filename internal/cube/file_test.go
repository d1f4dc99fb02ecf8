package cube

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/keflavich/frocc/internal/fits"
)

func testHeader(t *testing.T, x, y, channels int) *fits.Header {
	t.Helper()
	return fits.NewImageHeader(-32, []int{x, y, channels, StokesDim})
}

func TestAllocateSizesFileExactly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.test.fits")
	header := testHeader(t, 10, 8, 5)
	geom := NewGeometry(10, 8, 5, header.Size())

	c, err := Allocate(path, geom, header)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != geom.TotalFileSize {
		t.Fatalf("file size %d, want %d", info.Size(), geom.TotalFileSize)
	}
}

func TestAllocateDataRegionReadsZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.zero.fits")
	header := testHeader(t, 6, 6, 2)
	geom := NewGeometry(6, 6, 2, header.Size())

	c, err := Allocate(path, geom, header)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	defer c.Close()

	for stokes := 0; stokes < geom.StokesDim; stokes++ {
		for channel := 0; channel < geom.ChannelDim; channel++ {
			slab, err := c.ReadSlab(stokes, channel)
			if err != nil {
				t.Fatalf("ReadSlab(%d,%d): %v", stokes, channel, err)
			}
			for i, v := range slab {
				if v != 0 {
					t.Fatalf("slab (%d,%d) sample %d = %v before any write", stokes, channel, i, v)
				}
			}
		}
	}
}

func TestAllocateRejectsMismatchedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.bad.fits")
	header := testHeader(t, 6, 6, 2)
	geom := NewGeometry(6, 6, 2, header.Size()+fits.BlockSize)

	_, err := Allocate(path, geom, header)
	var allocErr *AllocationError
	if !errors.As(err, &allocErr) {
		t.Fatalf("expected AllocationError, got %v", err)
	}
}

func TestWriteSlabReadSlabRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.rt.fits")
	header := testHeader(t, 5, 4, 3)
	geom := NewGeometry(5, 4, 3, header.Size())

	c, err := Allocate(path, geom, header)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	defer c.Close()

	slab := make([]float32, geom.XDim*geom.YDim)
	for i := range slab {
		slab[i] = float32(i) * 1.25
	}
	slab[3] = float32(math.NaN())
	slab[7] = float32(math.Inf(-1))

	if err := c.WriteSlab(2, 1, slab); err != nil {
		t.Fatalf("WriteSlab: %v", err)
	}
	got, err := c.ReadSlab(2, 1)
	if err != nil {
		t.Fatalf("ReadSlab: %v", err)
	}
	for i := range slab {
		if math.Float32bits(got[i]) != math.Float32bits(slab[i]) {
			t.Fatalf("sample %d: bits %x != %x", i, math.Float32bits(got[i]), math.Float32bits(slab[i]))
		}
	}
}

func TestWriteSlabLeavesNeighborsUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.disjoint.fits")
	header := testHeader(t, 4, 4, 3)
	geom := NewGeometry(4, 4, 3, header.Size())

	c, err := Allocate(path, geom, header)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	defer c.Close()

	slab := make([]float32, geom.XDim*geom.YDim)
	for i := range slab {
		slab[i] = 42
	}
	if err := c.WriteSlab(1, 1, slab); err != nil {
		t.Fatalf("WriteSlab: %v", err)
	}

	for stokes := 0; stokes < geom.StokesDim; stokes++ {
		for channel := 0; channel < geom.ChannelDim; channel++ {
			got, err := c.ReadSlab(stokes, channel)
			if err != nil {
				t.Fatalf("ReadSlab(%d,%d): %v", stokes, channel, err)
			}
			want := float32(0)
			if stokes == 1 && channel == 1 {
				want = 42
			}
			for i, v := range got {
				if v != want {
					t.Fatalf("slab (%d,%d) sample %d = %v, want %v", stokes, channel, i, v, want)
				}
			}
		}
	}
}

func TestWriteSlabValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.val.fits")
	header := testHeader(t, 4, 4, 2)
	geom := NewGeometry(4, 4, 2, header.Size())

	c, err := Allocate(path, geom, header)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	defer c.Close()

	var slabErr *SlabWriteError
	if err := c.WriteSlab(4, 0, make([]float32, 16)); !errors.As(err, &slabErr) {
		t.Fatalf("expected SlabWriteError for Stokes out of range, got %v", err)
	}
	if err := c.WriteSlab(0, 0, make([]float32, 15)); !errors.As(err, &slabErr) {
		t.Fatalf("expected SlabWriteError for short slab, got %v", err)
	}
}

func TestOpenExistingCube(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.reopen.fits")
	header := testHeader(t, 4, 4, 2)
	geom := NewGeometry(4, 4, 2, header.Size())

	c, err := Allocate(path, geom, header)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	slab := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if err := c.WriteSlab(3, 1, slab); err != nil {
		t.Fatalf("WriteSlab: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, geom)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.ReadSlab(3, 1)
	if err != nil {
		t.Fatalf("ReadSlab: %v", err)
	}
	for i := range slab {
		if got[i] != slab[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], slab[i])
		}
	}
}
