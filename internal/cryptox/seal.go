package cryptox

// Sealed is a secret encrypted under a password-derived KEK together with the
// salt and work factor needed to derive that KEK again.
type Sealed struct {
	Salt       []byte
	Blob       string
	Iterations int
}

// SealWithPassword derives a KEK from password and a fresh salt and returns
// the AEAD-encrypted plaintext as a canonical blob. The KEK never outlives
// the call.
func SealWithPassword(password, plaintext []byte, iterations int) (Sealed, error) {
	salt, err := NewSalt()
	if err != nil {
		return Sealed{}, err
	}

	kek := DeriveKey(password, salt, iterations)
	defer kek.Wipe()

	iv, ct, err := AEADEncrypt(kek, plaintext)
	if err != nil {
		return Sealed{}, err
	}

	return Sealed{
		Salt:       salt,
		Blob:       EncryptedBlob{Algorithm: AlgAESGCM, IV: iv, Ciphertext: ct}.Encode(),
		Iterations: iterations,
	}, nil
}

// OpenWithPassword reverses SealWithPassword using the record's own salt and
// iteration count. The caller owns wiping the result.
func OpenWithPassword(password, salt []byte, blob string, iterations int) (SecretBytes, error) {
	b, err := DecodeBlob(blob)
	if err != nil {
		return nil, err
	}

	kek := DeriveKey(password, salt, iterations)
	defer kek.Wipe()

	pt, err := AEADDecrypt(kek, b.IV, b.Ciphertext)
	if err != nil {
		return nil, err
	}
	return SecretBytes(pt), nil
}
