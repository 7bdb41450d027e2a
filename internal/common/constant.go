package common

const (
	// SaltSize is the length of every KDF salt, in bytes.
	SaltSize = 16

	// DefaultKDFIterations matches the PBKDF2 work factor of existing vaults.
	DefaultKDFIterations = 65536

	// DefaultFetchLimit bounds the headers returned per fetchHeaders call.
	DefaultFetchLimit = 200

	// SentFolder is the local folder outgoing messages are filed under.
	SentFolder = "Sent"
)
