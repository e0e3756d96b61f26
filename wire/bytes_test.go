package wire_test

import (
	"testing"

	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/wire"
)

func TestStringRoundtrip(t *testing.T) {
	dst := make([]byte, 64)
	w := buf.NewWriter(dst)
	if err := wire.WriteString(w, "demo/example/a"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	r := buf.NewReader(w.Bytes())
	s, err := wire.ReadString(r)
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if s != "demo/example/a" {
		t.Fatalf("got %q", s)
	}
}

func TestStringRejectsInvalidUTF8(t *testing.T) {
	dst := make([]byte, 16)
	w := buf.NewWriter(dst)
	_ = wire.WriteBytes(w, []byte{0xff, 0xfe, 0xfd})
	r := buf.NewReader(w.Bytes())
	if _, err := wire.ReadString(r); err != wire.ErrFmt {
		t.Fatalf("got %v, want ErrFmt", err)
	}
}

func TestFixedWidthRoundtrip(t *testing.T) {
	dst := make([]byte, 16)
	w := buf.NewWriter(dst)
	_ = wire.WriteU16LE(w, 0xabcd)
	_ = wire.WriteU32LE(w, 0x01020304)
	_ = wire.WriteU64LE(w, 0x0102030405060708)
	r := buf.NewReader(w.Bytes())
	u16, _ := wire.ReadU16LE(r)
	u32, _ := wire.ReadU32LE(r)
	u64, _ := wire.ReadU64LE(r)
	if u16 != 0xabcd || u32 != 0x01020304 || u64 != 0x0102030405060708 {
		t.Fatalf("mismatch: %x %x %x", u16, u32, u64)
	}
}
