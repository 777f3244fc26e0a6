package crypto

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/voyagervm/voyagervm/core/types"
)

func TestKeccak256Empty(t *testing.T) {
	got := hex.EncodeToString(Keccak256())
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got != want {
		t.Errorf("Keccak256() = %s, want %s", got, want)
	}
}

func TestKeccak256Abc(t *testing.T) {
	got := hex.EncodeToString(Keccak256([]byte("abc")))
	want := "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"
	if got != want {
		t.Errorf("Keccak256(abc) = %s, want %s", got, want)
	}
}

func TestKeccak256Chunked(t *testing.T) {
	whole := Keccak256([]byte("hello world"))
	parts := Keccak256([]byte("hello "), []byte("world"))
	if types.BytesToHash(whole) != types.BytesToHash(parts) {
		t.Error("chunked write changed the digest")
	}
}

func TestCreateAddress(t *testing.T) {
	caller := types.HexToAddress("0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0")
	cases := []struct {
		nonce uint64
		want  string
	}{
		{0, "0xcd234a471b72ba2f1ccf0a70fcaba648a5eecd8d"},
		{1, "0x343c43a37d37dff08ae8c4a11544c718abb4fcf8"},
		{2, "0xf778b86fa74e846c4f0a1fbd1335fe81c00a0c91"},
	}
	for _, c := range cases {
		got := CreateAddress(caller, c.nonce)
		if got != types.HexToAddress(c.want) {
			t.Errorf("CreateAddress(nonce=%d) = %s, want %s", c.nonce, got.Hex(), c.want)
		}
	}
}

func TestValidateSignatureValues(t *testing.T) {
	one := big.NewInt(1)
	zero := new(big.Int)

	if !ValidateSignatureValues(0, one, one, false) {
		t.Error("minimal valid signature rejected")
	}
	if ValidateSignatureValues(0, zero, one, false) {
		t.Error("r = 0 accepted")
	}
	if ValidateSignatureValues(0, one, zero, false) {
		t.Error("s = 0 accepted")
	}
	if ValidateSignatureValues(2, one, one, false) {
		t.Error("v = 2 accepted")
	}
	if ValidateSignatureValues(0, secp256k1N, one, false) {
		t.Error("r = N accepted")
	}
	// Homestead rejects s in the upper half.
	upper := new(big.Int).Add(secp256k1halfN, one)
	if ValidateSignatureValues(0, one, upper, true) {
		t.Error("homestead accepted malleable s")
	}
	if !ValidateSignatureValues(0, one, upper, false) {
		t.Error("frontier rejected high s")
	}
}

func TestEcrecoverBadLength(t *testing.T) {
	if _, err := Ecrecover(make([]byte, 32), make([]byte, 64)); err == nil {
		t.Error("short signature accepted")
	}
}
