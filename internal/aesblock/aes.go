// Package aesblock provides the AES-128 block primitive used for
// challenge-response authentication.
package aesblock

import (
	"crypto/aes"

	"github.com/bigbag/k5link/internal/protocol"
)

// Cipher encrypts single blocks with AES-128 in CBC mode.
type Cipher struct{}

// EncryptBlock returns AES-128(key, in XOR iv). Keys and blocks are four
// words serialized little-endian.
func (Cipher) EncryptBlock(key, iv, in [4]uint32) [4]uint32 {
	k := protocol.WordsToBytes(key)
	block, err := aes.NewCipher(k[:])
	if err != nil {
		// aes.NewCipher only fails on key length, and k is always 16 bytes.
		panic(err)
	}

	var x [4]uint32
	for i := range x {
		x[i] = in[i] ^ iv[i]
	}
	src := protocol.WordsToBytes(x)
	var dst [16]byte
	block.Encrypt(dst[:], src[:])
	return protocol.BytesToWords(dst)
}

// Response computes the answer a host sends for a challenge under key.
func Response(key, challenge [4]uint32) [4]uint32 {
	return Cipher{}.EncryptBlock(key, [4]uint32{}, challenge)
}
