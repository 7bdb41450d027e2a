package attachments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/filex"
)

// FSStore keeps each blob as a file under a root directory.
type FSStore struct {
	root string
}

func NewFSStore(dir string) (*FSStore, error) {
	root, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("attachment dir: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Root() string { return s.root }

func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	path, err := filex.SafeJoin(s.root, key)
	if err != nil {
		return common.Validationf("storage key: %v", err)
	}
	return filex.WriteFileAtomic(path, data, 0o600)
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := filex.SafeJoin(s.root, key)
	if err != nil {
		return nil, common.Validationf("storage key: %v", err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.NotFoundf("attachment %s", key)
	}
	return data, err
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	path, err := filex.SafeJoin(s.root, key)
	if err != nil {
		return common.Validationf("storage key: %v", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
