// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package container implements the bidirectional grammar for the single
// binary document family this system version-controls: a 12-byte header
// ("BLENDER" + pointer-width byte + endianness byte + 3-byte version),
// a sequence of self-describing blocks, and a 4-byte "ENDB" sentinel.
//
// Every rule in this grammar describes both parsing and printing: Decode
// and Encode share the same field layout and the same state (pointer
// width, endianness) threaded through in opposite directions, so that
// encode(decode(b)) == b for any well-formed b (the round-trip law).
package container

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	magic      = "BLENDER"
	sentinel   = "ENDB"
	headerSize = 12
)

// PointerWidth is the byte encoding the memory-address field width.
type PointerWidth byte

const (
	PointerWidth32 PointerWidth = '_'
	PointerWidth64 PointerWidth = '-'
)

// Endianness is the byte encoding the integer byte order used from the
// header onward.
type Endianness byte

const (
	LittleEndian Endianness = 'v'
	BigEndian    Endianness = 'V'
)

// Header is the fixed 12-byte preamble of the container.
type Header struct {
	PointerWidth PointerWidth
	Endianness   Endianness
	Version      [3]byte
}

// Block is one self-describing unit of the container body.
type Block struct {
	Code    [4]byte
	Address uint64
	DNA     uint32
	Count   uint32
	Payload []byte
}

// state is the mutable parse/print context that the header rule produces
// and every later rule consumes: byte order and pointer width.
type state struct {
	order        binary.ByteOrder
	pointerWidth int
}

func (h Header) state() (state, error) {
	var order binary.ByteOrder
	switch h.Endianness {
	case LittleEndian:
		order = binary.LittleEndian
	case BigEndian:
		order = binary.BigEndian
	default:
		return state{}, NewErrParse("unknown endianness byte %q", byte(h.Endianness))
	}
	var width int
	switch h.PointerWidth {
	case PointerWidth32:
		width = 4
	case PointerWidth64:
		width = 8
	default:
		return state{}, NewErrParse("unknown pointer-width byte %q", byte(h.PointerWidth))
	}
	return state{order: order, pointerWidth: width}, nil
}

func decodeHeader(r io.Reader) (Header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, NewErrParse("short header: %v", err)
	}
	if string(buf[:7]) != magic {
		return Header{}, NewErrParse("bad magic %q", buf[:7])
	}
	h := Header{
		PointerWidth: PointerWidth(buf[7]),
		Endianness:   Endianness(buf[8]),
	}
	copy(h.Version[:], buf[9:12])
	if _, err := h.state(); err != nil {
		return Header{}, err
	}
	return h, nil
}

func encodeHeader(w io.Writer, h Header) error {
	if _, err := h.state(); err != nil {
		return NewErrPrint("%v", err)
	}
	var buf [headerSize]byte
	copy(buf[:7], magic)
	buf[7] = byte(h.PointerWidth)
	buf[8] = byte(h.Endianness)
	copy(buf[9:12], h.Version[:])
	_, err := w.Write(buf[:])
	return err
}

func decodeBlock(r io.Reader, st state) (Block, bool, error) {
	var code [4]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		return Block{}, false, NewErrParse("short block code: %v", err)
	}
	if string(code[:]) == sentinel {
		return Block{}, true, nil
	}
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return Block{}, false, NewErrParse("short block size: %v", err)
	}
	size := st.order.Uint32(sizeBuf[:])

	addrBuf := make([]byte, st.pointerWidth)
	if _, err := io.ReadFull(r, addrBuf); err != nil {
		return Block{}, false, NewErrParse("short block address: %v", err)
	}
	var address uint64
	if st.pointerWidth == 8 {
		address = st.order.Uint64(addrBuf)
	} else {
		address = uint64(st.order.Uint32(addrBuf))
	}

	var dnaBuf, countBuf [4]byte
	if _, err := io.ReadFull(r, dnaBuf[:]); err != nil {
		return Block{}, false, NewErrParse("short block dna index: %v", err)
	}
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return Block{}, false, NewErrParse("short block count: %v", err)
	}

	payload := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Block{}, false, NewErrParse("short block payload: %v", err)
		}
	}
	return Block{
		Code:    code,
		Address: address,
		DNA:     st.order.Uint32(dnaBuf[:]),
		Count:   st.order.Uint32(countBuf[:]),
		Payload: payload,
	}, false, nil
}

func encodeBlock(w io.Writer, b Block, st state) error {
	if _, err := w.Write(b.Code[:]); err != nil {
		return err
	}
	var sizeBuf [4]byte
	st.order.PutUint32(sizeBuf[:], uint32(len(b.Payload)))
	if _, err := w.Write(sizeBuf[:]); err != nil {
		return err
	}
	addrBuf := make([]byte, st.pointerWidth)
	if st.pointerWidth == 8 {
		st.order.PutUint64(addrBuf, b.Address)
	} else {
		st.order.PutUint32(addrBuf, uint32(b.Address))
	}
	if _, err := w.Write(addrBuf); err != nil {
		return err
	}
	var dnaBuf, countBuf [4]byte
	st.order.PutUint32(dnaBuf[:], b.DNA)
	st.order.PutUint32(countBuf[:], b.Count)
	if _, err := w.Write(dnaBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}
	if len(b.Payload) > 0 {
		if _, err := w.Write(b.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses a full container byte stream into its header and ordered
// block sequence. Trailing bytes after the sentinel are accepted and
// ignored. A zero-length stream, a bad magic, a truncated field, or a
// missing sentinel all fail with *ErrParse.
func Decode(r io.Reader) (Header, []Block, error) {
	h, err := decodeHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	st, err := h.state()
	if err != nil {
		return Header{}, nil, err
	}
	var blocks []Block
	for {
		b, done, err := decodeBlock(r, st)
		if err != nil {
			return Header{}, nil, err
		}
		if done {
			break
		}
		blocks = append(blocks, b)
	}
	return h, blocks, nil
}

// DecodeBytes is a convenience wrapper around Decode for an in-memory
// buffer holding a whole container (header, blocks and sentinel).
func DecodeBytes(b []byte) (Header, []Block, error) {
	return Decode(bytes.NewReader(b))
}

// Encode prints a (Header, []Block) value back to the wire format defined
// by this grammar, appending the sentinel. It fails with *ErrPrint only on
// an internal inconsistency (an unrecognized header byte).
func Encode(w io.Writer, h Header, blocks []Block) error {
	if err := encodeHeader(w, h); err != nil {
		return err
	}
	st, err := h.state()
	if err != nil {
		return NewErrPrint("%v", err)
	}
	for _, b := range blocks {
		if err := encodeBlock(w, b, st); err != nil {
			return NewErrPrint("%v", err)
		}
	}
	_, err = w.Write([]byte(sentinel))
	return err
}

// EncodeBlock prints a single block using the byte order and pointer width
// derived from header h. Used by the commit pipeline to fingerprint and
// store one block at a time.
func EncodeBlock(h Header, b Block) ([]byte, error) {
	st, err := h.state()
	if err != nil {
		return nil, NewErrPrint("%v", err)
	}
	var buf bytes.Buffer
	if err := encodeBlock(&buf, b, st); err != nil {
		return nil, NewErrPrint("%v", err)
	}
	return buf.Bytes(), nil
}

// EncodeBytes prints a (Header, []Block) value to a new byte slice.
func EncodeBytes(h Header, blocks []Block) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, h, blocks); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HeaderBytes prints just the 12-byte header. The commit pipeline stores
// these bytes on the commit, and restore later concatenates them as
// header ∥ blocks ∥ sentinel without re-running the full block grammar.
func HeaderBytes(h Header) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHeader(&buf, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sentinel returns the fixed terminator bytes, exported for restore's
// direct-concatenation assembly path.
func Sentinel() []byte {
	return []byte(sentinel)
}
