package fits

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeTestImage writes a 4-axis float32 image: planes[stokes] holds
// y*x samples, degenerate frequency axis.
func writeTestImage(t *testing.T, path string, x, y int, freq float64, planes [][]float32) {
	t.Helper()
	h := NewImageHeader(-32, []int{x, y, 1, len(planes)})
	h.SetFloat("CRVAL3", freq)
	h.SetString("CTYPE3", "FREQ")

	buf := h.Encode()
	for _, plane := range planes {
		buf = append(buf, EncodeFloat32(plane)...)
	}
	if pad := len(buf) % BlockSize; pad != 0 {
		buf = append(buf, make([]byte, BlockSize-pad)...)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing test image: %v", err)
	}
}

func rampPlane(n int, base float32) []float32 {
	plane := make([]float32, n)
	for i := range plane {
		plane[i] = base + float32(i)
	}
	return plane
}

func TestOpenImageReadsPlanes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.chan001.image.fits")
	x, y := 6, 4
	planes := make([][]float32, 4)
	for s := range planes {
		planes[s] = rampPlane(x*y, float32(s)*100)
	}
	planes[2][5] = float32(math.NaN())
	writeTestImage(t, path, x, y, 1.4e9, planes)

	img, err := OpenImage(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer img.Close()

	gotX, gotY := img.SpatialDims()
	if gotX != x || gotY != y {
		t.Fatalf("spatial dims = %dx%d, want %dx%d", gotX, gotY, x, y)
	}
	freq, err := img.Frequency()
	if err != nil || freq != 1.4e9 {
		t.Fatalf("frequency = %v (%v), want 1.4e9", freq, err)
	}

	for s := 0; s < 4; s++ {
		got, err := img.ReadPlane(s)
		if err != nil {
			t.Fatalf("ReadPlane(%d): %v", s, err)
		}
		if len(got) != x*y {
			t.Fatalf("plane %d has %d samples, want %d", s, len(got), x*y)
		}
		for i := range got {
			if math.Float32bits(got[i]) != math.Float32bits(planes[s][i]) {
				t.Fatalf("plane %d sample %d = %v, want %v", s, i, got[i], planes[s][i])
			}
		}
	}
}

func TestOpenImageRejectsWrongBitpix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "int.image.fits")
	h := NewImageHeader(16, []int{4, 4})
	if err := os.WriteFile(path, h.Encode(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenImage(path); err == nil {
		t.Fatal("expected error for BITPIX 16")
	}
}

func TestOpenImageRejectsTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.image.fits")
	if err := os.WriteFile(path, []byte("not a real image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenImage(path); err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestReadPlaneOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twoplane.image.fits")
	writeTestImage(t, path, 4, 4, 1e9, [][]float32{rampPlane(16, 0), rampPlane(16, 10)})

	img, err := OpenImage(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer img.Close()

	if _, err := img.ReadPlane(3); err == nil {
		t.Fatal("expected error reading plane 3 of a 2-plane image")
	}
}

func TestEncodeDecodeFloat32RoundTrip(t *testing.T) {
	samples := []float32{0, 1.5, -2.25, float32(math.NaN()), float32(math.Inf(1)), 3.4e38}
	got := DecodeFloat32(EncodeFloat32(samples))
	if len(got) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if math.Float32bits(got[i]) != math.Float32bits(samples[i]) {
			t.Fatalf("sample %d: bits %x != %x", i, math.Float32bits(got[i]), math.Float32bits(samples[i]))
		}
	}
}
