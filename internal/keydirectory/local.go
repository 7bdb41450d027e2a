package keydirectory

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophmail/internal/client/repositories/keys"
)

// Local answers lookups from the client database: own accounts' keys and
// public keys pinned with ImportPublicKey.
type Local struct {
	keys keys.Repository
}

func NewLocal(repo keys.Repository) *Local {
	return &Local{keys: repo}
}

func (l *Local) FindPublicKeyByEmail(ctx context.Context, email string) (*PublicKeyRecord, error) {
	k, err := l.keys.FindPublicByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("local key of %s: %w", email, err)
	}
	if k == nil {
		return nil, nil
	}
	return &PublicKeyRecord{
		ID:           k.ID,
		AccountID:    k.AccountID,
		Email:        email,
		PublicKeyPEM: k.PublicKeyPEM,
		CreatedAt:    k.CreatedAt,
	}, nil
}

// UploadPublicKey is a no-op: local keys are already stored.
func (l *Local) UploadPublicKey(ctx context.Context, email, publicKeyPEM string) (*PublicKeyRecord, error) {
	return &PublicKeyRecord{Email: email, PublicKeyPEM: publicKeyPEM}, nil
}
