package challenge

import (
	"encoding/hex"
	"testing"
)

func TestDeriveP2PKH(t *testing.T) {
	// Known key/address pairs. The first is the genesis block coinbase
	// key, the other two are the compressed and uncompressed encodings of
	// the key for scalar 1.
	cases := []struct {
		name   string
		pubKey string
		want   string
	}{
		{
			name:   "genesis uncompressed",
			pubKey: "04678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf11d5f",
			want:   "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		},
		{
			name:   "scalar one compressed",
			pubKey: "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
			want:   "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH",
		},
		{
			name:   "scalar one uncompressed",
			pubKey: "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8",
			want:   "1EHNa6Q4Jz2uvNExL497mE43ikXhwF6kZm",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := hex.DecodeString(tc.pubKey)
			if err != nil {
				t.Fatal(err)
			}
			if got := DeriveP2PKH(raw); got != tc.want {
				t.Errorf("DeriveP2PKH = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDeriveP2PKHFormDependent(t *testing.T) {
	compressed, _ := hex.DecodeString("0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	uncompressed, _ := hex.DecodeString("0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8")

	if DeriveP2PKH(compressed) == DeriveP2PKH(uncompressed) {
		t.Error("Compressed and uncompressed encodings must derive different addresses")
	}
}
