package protocol

// ObfuscationKey is the keystream table applied to payloads in encrypted mode.
var ObfuscationKey = [16]byte{
	0x16, 0x6C, 0x14, 0xE6, 0x2E, 0x91, 0x0D, 0x40,
	0x21, 0x35, 0xD5, 0x40, 0x13, 0x03, 0xE9, 0x80,
}

// Obfuscate XORs p in place with the key table, starting at key index 0.
// The transform is its own inverse.
func Obfuscate(p []byte) {
	for i := range p {
		p[i] ^= ObfuscationKey[i%len(ObfuscationKey)]
	}
}

// FooterPad returns the two pad bytes that follow a reply payload of the
// given size. In encrypted mode they are 0xFF 0xFF run through the keystream.
func FooterPad(size int, encrypted bool) [2]byte {
	if !encrypted {
		return [2]byte{0xFF, 0xFF}
	}
	return [2]byte{
		ObfuscationKey[size%len(ObfuscationKey)] ^ 0xFF,
		ObfuscationKey[(size+1)%len(ObfuscationKey)] ^ 0xFF,
	}
}
