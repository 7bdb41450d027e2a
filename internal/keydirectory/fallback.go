package keydirectory

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophmail/internal/logging"
)

// Fallback asks Remote first and Local when the remote has no key or fails.
// Either side may be nil.
type Fallback struct {
	Remote Directory
	Local  Directory
	Log    logging.Logger
}

func (f *Fallback) FindPublicKeyByEmail(ctx context.Context, email string) (*PublicKeyRecord, error) {
	var remoteErr error
	if f.Remote != nil {
		rec, err := f.Remote.FindPublicKeyByEmail(ctx, email)
		if err == nil && rec != nil {
			return rec, nil
		}
		if err != nil {
			remoteErr = err
			if f.Log != nil {
				f.Log.Warn(ctx, "key server lookup failed, trying local keys", "email", email, "err", err)
			}
		}
	}
	if f.Local == nil {
		return nil, remoteErr
	}
	rec, err := f.Local.FindPublicKeyByEmail(ctx, email)
	if err != nil {
		return nil, errors.Join(remoteErr, err)
	}
	return rec, nil
}

// UploadPublicKey publishes to the remote directory only.
func (f *Fallback) UploadPublicKey(ctx context.Context, email, publicKeyPEM string) (*PublicKeyRecord, error) {
	if f.Remote == nil {
		return nil, errors.New("no key server configured")
	}
	return f.Remote.UploadPublicKey(ctx, email, publicKeyPEM)
}
