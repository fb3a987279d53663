package challenge

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
)

// mainnet pay-to-pubkey-hash version byte
const p2pkhVersion = 0x00

// DeriveP2PKH returns the mainnet P2PKH address of a serialized public
// key: Base58Check over HASH160(pub). The key bytes are hashed exactly as
// given, so compressed and uncompressed forms of the same key yield
// different addresses.
func DeriveP2PKH(pub []byte) string {
	return base58.CheckEncode(btcutil.Hash160(pub), p2pkhVersion)
}
