// Package exchange implements the deterministic binary envelope that
// carries commits and blocks between repositories (spec.md §4.8/§4.9).
//
// The encoding is hand-rolled over encoding/binary rather than a
// generic serialisation library: the wire shape is small, fixed, and
// exists purely as a compatibility boundary between two copies of this
// same program, so a length-prefixed field encoding is simpler and more
// auditable than pulling in a schema-based codec for it. Every integer
// is written little-endian explicitly, fixing the host-endianness bug
// spec.md §9 flags in the original.
package exchange

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/blendvc/blendvc/modules/blend/object"
	"github.com/blendvc/blendvc/modules/plumbing"
)

// Exchange is a packet of commits and the blocks they reference,
// sufficient to reconstitute those commits in another repository.
type Exchange struct {
	Commits []object.Commit
	Blocks  []object.Block
}

// Sync is an Exchange plus the sender's known local branch tips, used
// for bidirectional synchronisation (spec.md §4.9).
type Sync struct {
	LocalTips []plumbing.Hash
	Exchange  Exchange
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, NewErrWire("truncated uint32: " + err.Error())
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, NewErrWire("truncated uint64: " + err.Error())
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, NewErrWire("truncated byte field: " + err.Error())
		}
	}
	return buf, nil
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeHash(w io.Writer, h plumbing.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (plumbing.Hash, error) {
	var h plumbing.Hash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return plumbing.ZeroHash, NewErrWire("truncated hash: " + err.Error())
	}
	return h, nil
}

func writeManifest(w io.Writer, m object.Manifest) error {
	if err := writeUint32(w, uint32(len(m))); err != nil {
		return err
	}
	for _, h := range m {
		if err := writeHash(w, h); err != nil {
			return err
		}
	}
	return nil
}

func readManifest(r io.Reader) (object.Manifest, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	m := make(object.Manifest, 0, n)
	for i := uint32(0); i < n; i++ {
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		m = append(m, h)
	}
	return m, nil
}

// writeCommit encodes c's fields in the order given in spec.md §3: hash,
// prev_commit_hash, project_id, branch, message, author, date, header,
// manifest.
func writeCommit(w io.Writer, c object.Commit) error {
	if err := writeHash(w, c.Hash); err != nil {
		return err
	}
	if err := writeString(w, c.PrevCommitHash); err != nil {
		return err
	}
	if err := writeString(w, c.ProjectID); err != nil {
		return err
	}
	if err := writeString(w, c.Branch); err != nil {
		return err
	}
	if err := writeString(w, c.Message); err != nil {
		return err
	}
	if err := writeString(w, c.Author); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(c.Date)); err != nil {
		return err
	}
	if err := writeBytes(w, c.Header); err != nil {
		return err
	}
	return writeManifest(w, c.Manifest)
}

func readCommit(r io.Reader) (object.Commit, error) {
	var c object.Commit
	var err error
	if c.Hash, err = readHash(r); err != nil {
		return c, err
	}
	if c.PrevCommitHash, err = readString(r); err != nil {
		return c, err
	}
	if c.ProjectID, err = readString(r); err != nil {
		return c, err
	}
	if c.Branch, err = readString(r); err != nil {
		return c, err
	}
	if c.Message, err = readString(r); err != nil {
		return c, err
	}
	if c.Author, err = readString(r); err != nil {
		return c, err
	}
	date, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.Date = int64(date)
	if c.Header, err = readBytes(r); err != nil {
		return c, err
	}
	if c.Manifest, err = readManifest(r); err != nil {
		return c, err
	}
	return c, nil
}

func writeBlock(w io.Writer, b object.Block) error {
	if err := writeHash(w, b.Hash); err != nil {
		return err
	}
	return writeBytes(w, b.Data)
}

func readBlock(r io.Reader) (object.Block, error) {
	var b object.Block
	var err error
	if b.Hash, err = readHash(r); err != nil {
		return b, err
	}
	if b.Data, err = readBytes(r); err != nil {
		return b, err
	}
	return b, nil
}

// EncodeExchange serialises e deterministically: structural equality of
// input implies byte equality of output.
func EncodeExchange(e Exchange) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint32(&buf, uint32(len(e.Commits))); err != nil {
		return nil, err
	}
	for _, c := range e.Commits {
		if err := writeCommit(&buf, c); err != nil {
			return nil, err
		}
	}
	if err := writeUint32(&buf, uint32(len(e.Blocks))); err != nil {
		return nil, err
	}
	for _, b := range e.Blocks {
		if err := writeBlock(&buf, b); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeExchange parses the packet produced by EncodeExchange.
func DecodeExchange(data []byte) (Exchange, error) {
	r := bytes.NewReader(data)
	e, err := decodeExchange(r)
	if err != nil {
		return Exchange{}, err
	}
	if r.Len() != 0 {
		return Exchange{}, NewErrWire("trailing bytes after exchange packet")
	}
	return e, nil
}

func decodeExchange(r io.Reader) (Exchange, error) {
	var e Exchange
	nCommits, err := readUint32(r)
	if err != nil {
		return e, err
	}
	e.Commits = make([]object.Commit, 0, nCommits)
	for i := uint32(0); i < nCommits; i++ {
		c, err := readCommit(r)
		if err != nil {
			return e, err
		}
		e.Commits = append(e.Commits, c)
	}
	nBlocks, err := readUint32(r)
	if err != nil {
		return e, err
	}
	e.Blocks = make([]object.Block, 0, nBlocks)
	for i := uint32(0); i < nBlocks; i++ {
		b, err := readBlock(r)
		if err != nil {
			return e, err
		}
		e.Blocks = append(e.Blocks, b)
	}
	return e, nil
}

// EncodeSync serialises s: local_tips followed by its embedded exchange,
// per spec.md §9's wire layout.
func EncodeSync(s Sync) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint32(&buf, uint32(len(s.LocalTips))); err != nil {
		return nil, err
	}
	for _, h := range s.LocalTips {
		if err := writeHash(&buf, h); err != nil {
			return nil, err
		}
	}
	exchangeBytes, err := EncodeExchange(s.Exchange)
	if err != nil {
		return nil, err
	}
	if _, err := buf.Write(exchangeBytes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSync parses the packet produced by EncodeSync.
func DecodeSync(data []byte) (Sync, error) {
	r := bytes.NewReader(data)
	var s Sync
	n, err := readUint32(r)
	if err != nil {
		return s, err
	}
	s.LocalTips = make([]plumbing.Hash, 0, n)
	for i := uint32(0); i < n; i++ {
		h, err := readHash(r)
		if err != nil {
			return s, err
		}
		s.LocalTips = append(s.LocalTips, h)
	}
	s.Exchange, err = decodeExchange(r)
	if err != nil {
		return s, err
	}
	if r.Len() != 0 {
		return s, NewErrWire("trailing bytes after sync packet")
	}
	return s, nil
}
