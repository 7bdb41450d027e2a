package keys

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/server/models"
)

// MemoryRepository keeps keys in process memory. It is used when the server
// runs without a database and by tests.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	keys   map[int64]models.PublicKey
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{keys: make(map[int64]models.PublicKey), now: time.Now}
}

func (r *MemoryRepository) Create(ctx context.Context, k *models.PublicKey) (*models.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	k.ID = r.nextID
	k.CreatedAt = r.now().UTC()
	r.keys[k.ID] = *k
	return k, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*models.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[id]
	if !ok {
		return nil, common.NotFoundf("key %d", id)
	}
	return &k, nil
}

func (r *MemoryRepository) ListByEmail(ctx context.Context, email string, verifiedOnly bool) ([]*models.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.PublicKey
	for _, k := range r.keys {
		if k.Email != email || (verifiedOnly && !k.Verified) {
			continue
		}
		k := k
		out = append(out, &k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *MemoryRepository) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[id]
	if !ok {
		return common.NotFoundf("key %d", id)
	}
	k.Verified = true
	k.VerifiedAt = at
	r.keys[id] = k
	return nil
}
