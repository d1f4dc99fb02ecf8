// Package cube computes the on-disk layout of the assembled image cube
// and provides slab-addressed access to it. The cube is never held in
// memory; every access goes through an explicit byte offset.
package cube

import (
	"github.com/keflavich/frocc/internal/fits"
)

// StokesDim is the polarization axis length. Full Stokes is assumed.
const StokesDim = 4

// Geometry fixes the cube's four-dimensional shape and exact file
// size. It is computed once, before any data exists, and drives every
// offset computation afterwards.
type Geometry struct {
	XDim       int
	YDim       int
	ChannelDim int
	StokesDim  int

	ElementSize int64
	HeaderSize  int64
	BlockSize   int64

	// TotalFileSize is HeaderSize plus the data region padded up to a
	// whole number of blocks.
	TotalFileSize int64
}

// NewGeometry derives the cube layout from the spatial dimensions of
// the reference image, the channel axis extent and the encoded header
// size.
func NewGeometry(xDim, yDim, channelDim int, headerSize int64) Geometry {
	g := Geometry{
		XDim:        xDim,
		YDim:        yDim,
		ChannelDim:  channelDim,
		StokesDim:   StokesDim,
		ElementSize: fits.ElementSize,
		HeaderSize:  headerSize,
		BlockSize:   fits.BlockSize,
	}
	data := g.DataSize()
	padded := (data + g.BlockSize - 1) / g.BlockSize * g.BlockSize
	g.TotalFileSize = g.HeaderSize + padded
	return g
}

// DataSize returns the unpadded byte size of the data region.
func (g Geometry) DataSize() int64 {
	return int64(g.XDim) * int64(g.YDim) * int64(g.ChannelDim) *
		int64(g.StokesDim) * g.ElementSize
}

// SlabSize returns the byte size of one (stokes, channel) slab: a full
// spatial plane of 32-bit floats.
func (g Geometry) SlabSize() int64 {
	return int64(g.XDim) * int64(g.YDim) * g.ElementSize
}

// OffsetOf returns the byte offset of a (stokes, channel) slab. The
// layout is row-major with Stokes slowest-varying, then Channel, then
// Y, then X; distinct pairs map to disjoint byte ranges.
func (g Geometry) OffsetOf(stokes, channel int) int64 {
	planes := int64(stokes)*int64(g.ChannelDim) + int64(channel)
	return g.HeaderSize + planes*g.SlabSize()
}

// Contains reports whether the (stokes, channel) pair addresses a slab
// inside the cube.
func (g Geometry) Contains(stokes, channel int) bool {
	return stokes >= 0 && stokes < g.StokesDim &&
		channel >= 0 && channel < g.ChannelDim
}
