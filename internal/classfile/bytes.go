package classfile

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
)

// reader is a big-endian cursor with a sticky error.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) need(n int, what string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: %s at offset %d", ErrTruncated, what, r.off)
		return false
	}
	return true
}

func (r *reader) u1(what string) uint8 {
	if !r.need(1, what) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u2(what string) uint16 {
	if !r.need(2, what) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) u4(what string) uint32 {
	if !r.need(4, what) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) u8(what string) uint64 {
	if !r.need(8, what) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

// bytes returns a copy of the next n bytes.
func (r *reader) bytes(n int, what string) []byte {
	if !r.need(n, what) || n == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out
}

func (r *reader) done() bool {
	return r.off >= len(r.buf)
}

// expectEnd fails when trailing bytes are left in an attribute body.
func (r *reader) expectEnd(what string) {
	if r.err == nil && r.off != len(r.buf) {
		r.err = malformed("%s: %d trailing bytes", what, len(r.buf)-r.off)
	}
}

// writer is a big-endian byte builder with a sticky error.
type writer struct {
	buf []byte
	err error
}

func (w *writer) u1(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) u2(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *writer) u4(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) u8(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *writer) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// count1 writes n as a u1 table length.
func (w *writer) count1(n int, what string) {
	v, err := safecast.Conv[uint8](n)
	if err != nil {
		w.fail(what, n, err)
		return
	}
	w.u1(v)
}

// count2 writes n as a u2 table length.
func (w *writer) count2(n int, what string) {
	v, err := safecast.Conv[uint16](n)
	if err != nil {
		w.fail(what, n, err)
		return
	}
	w.u2(v)
}

// count4 writes n as a u4 length.
func (w *writer) count4(n int, what string) {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		w.fail(what, n, err)
		return
	}
	w.u4(v)
}

func (w *writer) fail(what string, n int, err error) {
	if w.err == nil {
		w.err = fmt.Errorf("%w: %s = %d: %w", ErrTooLarge, what, n, err)
	}
}

func (w *writer) attributes(attrs []*Attribute) {
	w.count2(len(attrs), "attributes_count")
	for _, a := range attrs {
		w.u2(a.NameIndex)
		w.count4(len(a.Info), "attribute_length")
		w.raw(a.Info)
	}
}

func (w *writer) result() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

func (r *reader) attributes(what string) []*Attribute {
	n := int(r.u2(what + " attributes_count"))
	if r.err != nil {
		return nil
	}
	attrs := make([]*Attribute, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		name := r.u2(what + " attribute_name_index")
		length := r.u4(what + " attribute_length")
		if r.err != nil {
			break
		}
		if uint64(length) > uint64(len(r.buf)-r.off) {
			r.err = fmt.Errorf("%w: %s attribute length %d at offset %d", ErrTruncated, what, length, r.off)
			break
		}
		attrs = append(attrs, &Attribute{NameIndex: name, Info: r.bytes(int(length), what+" attribute")})
	}
	return attrs
}
