package cryptox

import (
	"crypto"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/dmitrijs2005/gophmail/internal/common"
)

// RSAKeyBits is the modulus size of generated account keys.
const RSAKeyBits = 2048

const pemTypePublic = "PUBLIC KEY"

func GenerateRSAKeyPair(bits int) (*rsa.PrivateKey, error) {
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, common.Cryptof(err, "generate rsa key")
	}
	return k, nil
}

// WrapKey encrypts a short symmetric key for the holder of pub. It is not
// meant for bulk data: payloads longer than k-11 bytes are rejected.
func WrapKey(pub *rsa.PublicKey, symKey []byte) ([]byte, error) {
	if pub == nil {
		return nil, common.Validationf("wrap key: nil public key")
	}
	if limit := pub.Size() - 11; len(symKey) > limit {
		return nil, common.Validationf("wrap key: payload %d bytes exceeds %d", len(symKey), limit)
	}
	out, err := rsa.EncryptPKCS1v15(rand.Reader, pub, symKey)
	if err != nil {
		return nil, common.Cryptof(err, "rsa wrap")
	}
	return out, nil
}

// UnwrapKey is the inverse of WrapKey. The caller owns wiping the result.
func UnwrapKey(priv *rsa.PrivateKey, blob []byte) (SecretBytes, error) {
	if priv == nil {
		return nil, common.Validationf("unwrap key: nil private key")
	}
	out, err := rsa.DecryptPKCS1v15(rand.Reader, priv, blob)
	if err != nil {
		return nil, common.Cryptof(err, "rsa unwrap")
	}
	return SecretBytes(out), nil
}

// Sign produces an MD5withRSA (PKCS#1 v1.5) signature over data.
func Sign(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
	if priv == nil {
		return nil, common.Validationf("sign: nil private key")
	}
	digest := md5.Sum(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.MD5, digest[:])
	if err != nil {
		return nil, common.Cryptof(err, "rsa sign")
	}
	return sig, nil
}

// Verify reports whether sig is a valid MD5withRSA signature of data.
func Verify(pub *rsa.PublicKey, data, sig []byte) bool {
	if pub == nil {
		return false
	}
	digest := md5.Sum(data)
	return rsa.VerifyPKCS1v15(pub, crypto.MD5, digest[:], sig) == nil
}

// EncodePublicKeyPEM renders pub as a PKIX "PUBLIC KEY" PEM block.
func EncodePublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", common.Cryptof(err, "marshal public key")
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: der})), nil
}

func ParsePublicKeyPEM(s string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil || block.Type != pemTypePublic {
		return nil, common.Validationf("public key: not a %q PEM block", pemTypePublic)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, common.Validationf("public key: %v", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, common.Validationf("public key: not RSA")
	}
	return pub, nil
}

// MarshalPrivateKey returns the PKCS#8 DER encoding of priv.
func MarshalPrivateKey(priv *rsa.PrivateKey) (SecretBytes, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, common.Cryptof(err, "marshal private key")
	}
	return SecretBytes(der), nil
}

// ParsePrivateKey parses PKCS#8 DER produced by MarshalPrivateKey.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, common.Cryptof(err, "parse private key")
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, common.Cryptof(nil, "private key is not RSA")
	}
	return priv, nil
}
