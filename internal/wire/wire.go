// Package wire provides the little-endian, length-prefixed primitives
// the snapshot codec in pkg/ink is built on. Spec §4.7 requires a
// byte-exact format with fixed-order sections, which rules out a
// self-describing reflection-based encoder like encoding/gob (see
// SPEC_FULL.md's Domain Stack section); this package is the minimal
// encoding/binary wrapper that gives the snapshot codec direct control
// over every byte instead.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer appends primitives to an in-memory byte buffer in the format
// snapshot.go relies on: fixed-width integers little-endian, strings
// and byte blobs as a uint32 length prefix followed by raw bytes.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) PutByte(v byte) { w.buf = append(w.buf, v) }

func (w *Writer) PutBool(v bool) {
	if v {
		w.PutByte(1)
	} else {
		w.PutByte(0)
	}
}

func (w *Writer) PutUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) PutInt32(v int32) { w.PutUint32(uint32(v)) }

func (w *Writer) PutUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) PutFloat64(v float64) { w.PutUint64(math.Float64bits(v)) }

// PutBytes writes a uint32 length prefix followed by b.
func (w *Writer) PutBytes(b []byte) {
	w.PutUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// PutString writes s as a length-prefixed UTF-8 blob.
func (w *Writer) PutString(s string) { w.PutBytes([]byte(s)) }

// Reader reads primitives back out of a byte slice written by Writer,
// advancing an internal cursor and returning io.ErrUnexpectedEOF (via
// an ErrTruncated wrapper) on any short read, so a corrupt or foreshortened
// snapshot surfaces as a decode error rather than a panic.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// ErrTruncated reports that a Reader ran out of bytes mid-field.
var ErrTruncated = fmt.Errorf("wire: truncated snapshot data: %w", io.ErrUnexpectedEOF)

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return ErrTruncated
	}
	return nil
}

func (r *Reader) GetByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) GetBool() (bool, error) {
	b, err := r.GetByte()
	return b != 0, err
}

func (r *Reader) GetUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) GetInt32() (int32, error) {
	v, err := r.GetUint32()
	return int32(v), err
}

func (r *Reader) GetUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) GetFloat64() (float64, error) {
	v, err := r.GetUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *Reader) GetBytes() ([]byte, error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := append([]byte(nil), r.buf[r.pos:r.pos+int(n)]...)
	r.pos += int(n)
	return b, nil
}

func (r *Reader) GetString() (string, error) {
	b, err := r.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Remaining reports how many bytes are left unread, for callers that
// want to confirm a section consumed exactly what it declared.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }
