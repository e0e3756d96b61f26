package buf_test

import (
	"bytes"
	"testing"

	"code.hybscloud.com/zlink/buf"
)

func TestReaderReadU8AndExact(t *testing.T) {
	r := buf.NewReader([]byte{0x01, 0x02, 0x03, 0x04})
	b, err := r.ReadU8()
	if err != nil || b != 0x01 {
		t.Fatalf("ReadU8: got (%v, %v)", b, err)
	}
	dst := make([]byte, 2)
	if err := r.ReadExact(dst); err != nil {
		t.Fatalf("ReadExact: %v", err)
	}
	if !bytes.Equal(dst, []byte{0x02, 0x03}) {
		t.Fatalf("ReadExact payload mismatch: %x", dst)
	}
	if r.Remaining() != 1 {
		t.Fatalf("Remaining = %d, want 1", r.Remaining())
	}
}

func TestReaderExhaustion(t *testing.T) {
	r := buf.NewReader(nil)
	if _, err := r.ReadU8(); err != buf.ErrSrcEmpty {
		t.Fatalf("got %v, want ErrSrcEmpty", err)
	}
	if err := r.ReadExact(make([]byte, 1)); err != buf.ErrSrcTooSmall {
		t.Fatalf("got %v, want ErrSrcTooSmall", err)
	}
}

func TestReaderMarkRewind(t *testing.T) {
	r := buf.NewReader([]byte{1, 2, 3})
	m := r.Mark()
	_, _ = r.ReadU8()
	_, _ = r.ReadU8()
	r.Rewind(m)
	if r.Remaining() != 3 {
		t.Fatalf("Rewind did not restore cursor, remaining=%d", r.Remaining())
	}
}

func TestReaderSubConstrains(t *testing.T) {
	r := buf.NewReader([]byte{1, 2, 3, 4, 5})
	sub, err := r.Sub(3)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if sub.Remaining() != 3 {
		t.Fatalf("sub remaining = %d, want 3", sub.Remaining())
	}
	if r.Remaining() != 2 {
		t.Fatalf("outer remaining after Sub = %d, want 2", r.Remaining())
	}
	if _, err := sub.ReadSlice(4); err != buf.ErrSrcTooSmall {
		t.Fatalf("sub read past bound: %v", err)
	}
}

func TestWriterWriteAndSlot(t *testing.T) {
	dst := make([]byte, 8)
	w := buf.NewWriter(dst)
	if err := w.WriteU8(0xAB); err != nil {
		t.Fatalf("WriteU8: %v", err)
	}
	n, err := w.WriteSlot(4, func(slot []byte) int {
		copy(slot, []byte{1, 2, 3})
		return 3
	})
	if err != nil || n != 3 {
		t.Fatalf("WriteSlot: n=%d err=%v", n, err)
	}
	if w.Written() != 4 {
		t.Fatalf("Written() = %d, want 4", w.Written())
	}
	if !bytes.Equal(w.Bytes(), []byte{0xAB, 1, 2, 3}) {
		t.Fatalf("Bytes() = %x", w.Bytes())
	}
}

func TestWriterSlotOverrunRejected(t *testing.T) {
	dst := make([]byte, 4)
	w := buf.NewWriter(dst)
	_, err := w.WriteSlot(2, func(slot []byte) int { return 99 })
	if err != buf.ErrDstFull {
		t.Fatalf("got %v, want ErrDstFull", err)
	}
}

func TestWriterDstTooSmall(t *testing.T) {
	w := buf.NewWriter(make([]byte, 1))
	if err := w.WriteExact([]byte{1, 2}); err != buf.ErrDstTooSmall {
		t.Fatalf("got %v, want ErrDstTooSmall", err)
	}
}
