// Package models defines the records persisted by the mail core.
package models

import "time"

// MasterPasswordVerifier is the single row that lets the client check a
// master password without storing it. Hash is a hash of the derived KEK.
type MasterPasswordVerifier struct {
	Salt       []byte
	Hash       []byte
	Iterations int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Security selects how the transport connects to the mail servers.
type Security string

const (
	SecurityTLS      Security = "tls"
	SecurityStartTLS Security = "starttls"
	SecurityNone     Security = "none"
)

// Account is a configured mailbox. The mail-login password is kept only as
// CredentialBlob, sealed under a KEK derived from the master password and
// CredentialSalt with CredentialIterations rounds.
type Account struct {
	ID             int64
	Email          string
	DisplayName    string
	Username       string
	IMAPHost       string
	IMAPPort       int
	SMTPHost       string
	SMTPPort       int
	Security       Security
	CredentialSalt []byte
	CredentialBlob string
	// CredentialIterations is the KDF work factor CredentialBlob was sealed with.
	CredentialIterations int
	CreatedAt            time.Time
}

// KeyRecord is an RSA key pair owned by an account. EncryptedPrivateKey is
// empty for imported public-only keys.
type KeyRecord struct {
	ID                  int64
	AccountID           int64
	PublicKeyPEM        string
	EncryptedPrivateKey string
	Salt                []byte
	// Iterations is the KDF work factor EncryptedPrivateKey was sealed with.
	Iterations int
	CreatedAt  time.Time
}

// HasPrivateKey reports whether the record carries private key material.
func (k *KeyRecord) HasPrivateKey() bool {
	return k.EncryptedPrivateKey != ""
}

// Metadata strips the encrypted material.
func (k *KeyRecord) Metadata() *KeyMetadata {
	return &KeyMetadata{
		ID:           k.ID,
		AccountID:    k.AccountID,
		PublicKeyPEM: k.PublicKeyPEM,
		HasPrivate:   k.HasPrivateKey(),
		CreatedAt:    k.CreatedAt,
	}
}

// KeyMetadata is what callers outside the vault get to see of a key.
type KeyMetadata struct {
	ID           int64
	AccountID    int64
	PublicKeyPEM string
	HasPrivate   bool
	CreatedAt    time.Time
}

// WrappedMessageKey is a message DEK encrypted for one recipient.
// WrappedKeyBlob is a canonical blob.
type WrappedMessageKey struct {
	ID             int64
	MessageID      int64
	RecipientEmail string
	WrappedKeyBlob string
	CreatedAt      time.Time
}

// Folder is the local record of a server folder; LastSyncUID is the sync
// cursor and 0 means the folder was never synced.
type Folder struct {
	ID          int64
	AccountID   int64
	ServerName  string
	LocalName   string
	LastSyncUID uint64
}

// Synced reports whether the folder has left the never-synced state.
func (f *Folder) Synced() bool { return f.LastSyncUID > 0 }

// Message is a stored mail. When IsEncrypted is set the body lives only in
// BodyBlob (DES ciphertext, canonical blob) and BodyText/BodyHTML are empty.
type Message struct {
	ID             int64
	AccountID      int64
	FolderID       int64
	ServerUID      uint64
	MessageID      string
	Subject        string
	Sender         string
	Recipients     []string
	Cc             []string
	SentAt         time.Time
	IsSeen         bool
	IsDeleted      bool
	IsEncrypted    bool
	HasAttachments bool
	BodyText       string
	BodyHTML       string
	BodyBlob       string
	Signature      []byte
	CreatedAt      time.Time
}

// Summary is the short form published with NewMessage events and listings.
func (m *Message) Summary() MessageSummary {
	return MessageSummary{
		ID:          m.ID,
		AccountID:   m.AccountID,
		FolderID:    m.FolderID,
		Subject:     m.Subject,
		Sender:      m.Sender,
		SentAt:      m.SentAt,
		IsSeen:      m.IsSeen,
		IsEncrypted: m.IsEncrypted,
	}
}

type MessageSummary struct {
	ID          int64
	AccountID   int64
	FolderID    int64
	Subject     string
	Sender      string
	SentAt      time.Time
	IsSeen      bool
	IsEncrypted bool
}

// Attachment describes one MIME part. Size is -1 when unknown. StorageKey
// locates the bytes in the attachment store, empty if they were not kept.
type Attachment struct {
	ID          int64
	MessageID   int64
	FileName    string
	ContentType string
	Size        int64
	PartIndex   int
	StorageKey  string
}

// SyncRun is one syncAccount execution.
type SyncRun struct {
	ID         int64
	AccountID  int64
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Fetched    int
	Failed     int
	Details    string
}
