package types

import (
	"bytes"
	"testing"
)

func TestBytesToHashPadding(t *testing.T) {
	h := BytesToHash([]byte{1, 2, 3})
	want := make([]byte, 32)
	want[29], want[30], want[31] = 1, 2, 3
	if !bytes.Equal(h.Bytes(), want) {
		t.Errorf("BytesToHash = %x, want %x", h.Bytes(), want)
	}
}

func TestBytesToHashTruncation(t *testing.T) {
	long := make([]byte, 40)
	for i := range long {
		long[i] = byte(i)
	}
	h := BytesToHash(long)
	if !bytes.Equal(h.Bytes(), long[8:]) {
		t.Errorf("BytesToHash kept wrong window: %x", h.Bytes())
	}
}

func TestHexToAddress(t *testing.T) {
	a := HexToAddress("0x000000000000000000000000000000000000beef")
	if a[18] != 0xbe || a[19] != 0xef {
		t.Errorf("HexToAddress = %x", a.Bytes())
	}
	if a.Hex() != "0x000000000000000000000000000000000000beef" {
		t.Errorf("Hex() = %s", a.Hex())
	}
}

func TestIsZero(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Error("zero address should be zero")
	}
	if !(Hash{}).IsZero() {
		t.Error("zero hash should be zero")
	}
	if HexToAddress("0x01").IsZero() {
		t.Error("nonzero address reported zero")
	}
}

func TestFromHexOddLength(t *testing.T) {
	if got := FromHex("0xf"); !bytes.Equal(got, []byte{0x0f}) {
		t.Errorf("FromHex(0xf) = %x, want 0f", got)
	}
	if got := FromHex("ff"); !bytes.Equal(got, []byte{0xff}) {
		t.Errorf("FromHex(ff) = %x, want ff", got)
	}
}
