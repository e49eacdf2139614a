package aesblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// FIPS-197 appendix C.1, expressed as little-endian words.
var (
	fipsKey    = [4]uint32{0x03020100, 0x07060504, 0x0B0A0908, 0x0F0E0D0C}
	fipsPlain  = [4]uint32{0x33221100, 0x77665544, 0xBBAA9988, 0xFFEEDDCC}
	fipsCipher = [4]uint32{0xD8E0C469, 0x30047B6A, 0x80B7CDD8, 0x5AC5B470}
)

func TestEncryptBlock_FIPS197(t *testing.T) {
	got := Cipher{}.EncryptBlock(fipsKey, [4]uint32{}, fipsPlain)
	assert.Equal(t, fipsCipher, got)
}

func TestEncryptBlock_IVIsXoredIntoInput(t *testing.T) {
	iv := [4]uint32{0xFFFFFFFF, 0x01, 0x80000000, 0x12345678}
	var in [4]uint32
	for i := range in {
		in[i] = fipsPlain[i] ^ iv[i]
	}
	assert.Equal(t, fipsCipher, Cipher{}.EncryptBlock(fipsKey, iv, in))
}

func TestResponse_MatchesZeroIV(t *testing.T) {
	challenge := [4]uint32{1, 2, 3, 4}
	key := [4]uint32{5, 6, 7, 8}
	assert.Equal(t, Cipher{}.EncryptBlock(key, [4]uint32{}, challenge), Response(key, challenge))
	assert.NotEqual(t, Response(key, challenge), Response([4]uint32{}, challenge))
}
