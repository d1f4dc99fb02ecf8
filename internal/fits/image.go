package fits

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// ElementSize is the byte size of a single data element (BITPIX -32).
const ElementSize = 4

// Image is a read-only view of a single-channel FITS image file: a
// header followed by big-endian float32 planes ordered X fastest, then
// Y, then the degenerate frequency axis, then Stokes.
type Image struct {
	Header *Header

	f          *os.File
	headerSize int64
	naxis      []int
}

// OpenImage opens path and parses its header. Only 32-bit float data is
// supported; anything else is reported as malformed.
func OpenImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	h, size, err := ReadHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	bitpix, err := h.Int("BITPIX")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if bitpix != -32 {
		f.Close()
		return nil, fmt.Errorf("%s: unsupported BITPIX %d", path, bitpix)
	}
	n, err := h.Int("NAXIS")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if n < 2 {
		f.Close()
		return nil, fmt.Errorf("%s: need at least 2 axes, got %d", path, n)
	}
	naxis := make([]int, n)
	for i := range naxis {
		d, err := h.Int(fmt.Sprintf("NAXIS%d", i+1))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		naxis[i] = d
	}
	return &Image{Header: h, f: f, headerSize: size, naxis: naxis}, nil
}

// Close releases the underlying file.
func (im *Image) Close() error { return im.f.Close() }

// SpatialDims returns the X and Y extents (NAXIS1, NAXIS2).
func (im *Image) SpatialDims() (x, y int) {
	return im.naxis[0], im.naxis[1]
}

// Frequency returns the reference frequency card CRVAL3 in Hz.
func (im *Image) Frequency() (float64, error) {
	return im.Header.Float("CRVAL3")
}

// ReadPlane reads the full spatial plane of one Stokes polarization,
// collapsing the degenerate frequency axis, and returns it row-major
// (Y rows of X samples).
func (im *Image) ReadPlane(stokes int) ([]float32, error) {
	planeElems := int64(im.naxis[0]) * int64(im.naxis[1])
	if stokes > 0 {
		if len(im.naxis) < 4 || im.naxis[3] <= stokes {
			return nil, fmt.Errorf("%s: no polarization plane %d", im.f.Name(), stokes)
		}
	}
	planesPerStokes := int64(1)
	if len(im.naxis) >= 3 {
		planesPerStokes = int64(im.naxis[2])
	}
	offset := im.headerSize + int64(stokes)*planesPerStokes*planeElems*ElementSize
	buf := make([]byte, planeElems*ElementSize)
	if _, err := im.f.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("%s: reading plane %d: %w", im.f.Name(), stokes, err)
	}
	return DecodeFloat32(buf), nil
}

// EncodeFloat32 serializes samples as big-endian IEEE-754 singles.
func EncodeFloat32(samples []float32) []byte {
	buf := make([]byte, len(samples)*ElementSize)
	for i, v := range samples {
		binary.BigEndian.PutUint32(buf[i*ElementSize:], math.Float32bits(v))
	}
	return buf
}

// DecodeFloat32 is the mirror of EncodeFloat32.
func DecodeFloat32(buf []byte) []float32 {
	samples := make([]float32, len(buf)/ElementSize)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[i*ElementSize:]))
	}
	return samples
}
