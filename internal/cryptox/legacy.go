package cryptox

import (
	"bytes"
	"crypto/des"

	"github.com/dmitrijs2005/gophmail/internal/common"
)

// LegacyKeySize is the DES key length (56 effective bits plus parity).
const LegacyKeySize = 8

// GenerateLegacyKey returns a random one-time DES key with odd parity bits.
func GenerateLegacyKey() (SecretBytes, error) {
	k, err := common.GenerateRandByteArray(LegacyKeySize)
	if err != nil {
		return nil, common.Cryptof(err, "generate DES key")
	}
	for i, b := range k {
		b &= 0xfe
		ones := 0
		for v := b; v != 0; v >>= 1 {
			ones += int(v & 1)
		}
		if ones%2 == 0 {
			b |= 1
		}
		k[i] = b
	}
	return SecretBytes(k), nil
}

// LegacyEncrypt encrypts data with DES in ECB mode and PKCS#5 padding. It is
// kept only for message bodies that other clients must still be able to read.
func LegacyEncrypt(key, data []byte) ([]byte, error) {
	block, err := des.NewCipher(key)
	if err != nil {
		return nil, common.Cryptof(err, "des cipher")
	}

	bs := block.BlockSize()
	pad := bs - len(data)%bs
	src := append(append(make([]byte, 0, len(data)+pad), data...), bytes.Repeat([]byte{byte(pad)}, pad)...)

	out := make([]byte, len(src))
	for i := 0; i < len(src); i += bs {
		block.Encrypt(out[i:i+bs], src[i:i+bs])
	}
	return out, nil
}

// LegacyDecrypt reverses LegacyEncrypt and strips the padding.
func LegacyDecrypt(key, data []byte) ([]byte, error) {
	block, err := des.NewCipher(key)
	if err != nil {
		return nil, common.Cryptof(err, "des cipher")
	}

	bs := block.BlockSize()
	if len(data) == 0 || len(data)%bs != 0 {
		return nil, common.Cryptof(nil, "des ciphertext length %d is not a multiple of %d", len(data), bs)
	}

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		block.Decrypt(out[i:i+bs], data[i:i+bs])
	}

	pad := int(out[len(out)-1])
	if pad == 0 || pad > bs {
		return nil, common.Cryptof(nil, "bad padding")
	}
	for _, b := range out[len(out)-pad:] {
		if int(b) != pad {
			return nil, common.Cryptof(nil, "bad padding")
		}
	}
	return out[:len(out)-pad], nil
}
