package fits

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// BlockSize is the FITS record size. Headers and the data region are both
// padded to a multiple of it.
const BlockSize = 2880

const cardLen = 80

// Header is an ordered list of 80-character header cards, END excluded.
// Cards that are not touched pass through encoding byte-for-byte, so a
// header copied from a reference image keeps everything the upstream
// imaging step wrote into it.
type Header struct {
	cards []string
}

// ReadHeader consumes 2880-byte blocks from r until the END card and
// returns the parsed header together with its on-disk size in bytes.
func ReadHeader(r io.Reader) (*Header, int64, error) {
	h := &Header{}
	block := make([]byte, BlockSize)
	var size int64
	for {
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, 0, fmt.Errorf("reading header block: %w", err)
		}
		size += BlockSize
		for i := 0; i < BlockSize; i += cardLen {
			card := string(block[i : i+cardLen])
			keyword := strings.TrimRight(card[:8], " ")
			if keyword == "END" {
				return h, size, nil
			}
			h.cards = append(h.cards, card)
		}
	}
}

// Clone returns an independent copy of the header.
func (h *Header) Clone() *Header {
	c := &Header{cards: make([]string, len(h.cards))}
	copy(c.cards, h.cards)
	return c
}

// Size returns the encoded header size in bytes, END card and block
// padding included.
func (h *Header) Size() int64 {
	n := (len(h.cards) + 1) * cardLen
	blocks := (n + BlockSize - 1) / BlockSize
	return int64(blocks * BlockSize)
}

// Encode serializes the header to its on-disk form: all cards, the END
// card, space padding to a multiple of BlockSize.
func (h *Header) Encode() []byte {
	buf := make([]byte, h.Size())
	for i := range buf {
		buf[i] = ' '
	}
	off := 0
	for _, card := range h.cards {
		copy(buf[off:], card)
		off += cardLen
	}
	copy(buf[off:], "END")
	return buf
}

func (h *Header) find(keyword string) int {
	for i, card := range h.cards {
		if strings.TrimRight(card[:8], " ") == keyword {
			return i
		}
	}
	return -1
}

// rawValue extracts the value field of a card, quote- and comment-aware.
func rawValue(card string) (string, string) {
	if len(card) < 10 || card[8:10] != "= " {
		return "", ""
	}
	rest := card[10:]
	if i := strings.IndexByte(rest, '\''); i >= 0 {
		if j := strings.IndexByte(rest[i+1:], '\''); j >= 0 {
			val := rest[i+1 : i+1+j]
			comment := strings.TrimSpace(rest[i+j+2:])
			comment = strings.TrimPrefix(comment, "/ ")
			return strings.TrimRight(val, " "), comment
		}
	}
	val := rest
	comment := ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		val = rest[:i]
		comment = strings.TrimSpace(rest[i+1:])
	}
	return strings.TrimSpace(val), comment
}

// Has reports whether the keyword is present.
func (h *Header) Has(keyword string) bool { return h.find(keyword) >= 0 }

// String returns the string value of a card.
func (h *Header) String(keyword string) (string, error) {
	i := h.find(keyword)
	if i < 0 {
		return "", fmt.Errorf("fits: keyword %s not found", keyword)
	}
	v, _ := rawValue(h.cards[i])
	return v, nil
}

// Int returns the integer value of a card.
func (h *Header) Int(keyword string) (int, error) {
	s, err := h.String(keyword)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("fits: keyword %s: %w", keyword, err)
	}
	return v, nil
}

// Float returns the floating-point value of a card.
func (h *Header) Float(keyword string) (float64, error) {
	s, err := h.String(keyword)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("fits: keyword %s: %w", keyword, err)
	}
	return v, nil
}

func (h *Header) set(keyword, value, comment string) {
	card := fmt.Sprintf("%-8s= %20s", keyword, value)
	if comment != "" {
		card += " / " + comment
	}
	if len(card) > cardLen {
		card = card[:cardLen]
	}
	card += strings.Repeat(" ", cardLen-len(card))
	if i := h.find(keyword); i >= 0 {
		h.cards[i] = card
		return
	}
	h.cards = append(h.cards, card)
}

// SetInt writes an integer-valued card, replacing any existing one.
func (h *Header) SetInt(keyword string, value int) {
	h.set(keyword, strconv.Itoa(value), "")
}

// SetFloat writes a floating-point card, replacing any existing one.
func (h *Header) SetFloat(keyword string, value float64) {
	h.set(keyword, strconv.FormatFloat(value, 'E', -1, 64), "")
}

// SetString writes a quoted string card, replacing any existing one.
func (h *Header) SetString(keyword, value string) {
	h.set(keyword, fmt.Sprintf("'%-8s'", value), "")
}

// SetBool writes a logical card, replacing any existing one.
func (h *Header) SetBool(keyword string, value bool) {
	v := "F"
	if value {
		v = "T"
	}
	h.set(keyword, v, "")
}

// NewImageHeader builds the mandatory cards of a primary image header:
// SIMPLE, BITPIX and the axis lengths, NAXIS1 fastest-varying.
func NewImageHeader(bitpix int, dims []int) *Header {
	h := &Header{}
	h.SetBool("SIMPLE", true)
	h.SetInt("BITPIX", bitpix)
	h.SetInt("NAXIS", len(dims))
	for i, d := range dims {
		h.SetInt(fmt.Sprintf("NAXIS%d", i+1), d)
	}
	return h
}
