package events

import (
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversOnlyMatchingKind(t *testing.T) {
	bus := NewBus()

	var started []SyncStarted
	var completed []SyncCompleted
	Subscribe(bus, func(e SyncStarted) { started = append(started, e) })
	Subscribe(bus, func(e SyncCompleted) { completed = append(completed, e) })

	bus.Publish(SyncStarted{AccountID: 1})
	bus.Publish(SyncCompleted{AccountID: 1, Success: true, Details: "ok"})
	bus.Publish(KeyCreated{KeyID: 3, AccountID: 1, CreatedAt: time.Now()})

	require.Len(t, started, 1)
	require.Len(t, completed, 1)
	assert.Equal(t, int64(1), started[0].AccountID)
	assert.True(t, completed[0].Success)
}

func TestBus_RegistrationOrderAndSubscribeAll(t *testing.T) {
	bus := NewBus()
	var order []string

	Subscribe(bus, func(NewMessage) { order = append(order, "first") })
	Subscribe(bus, func(NewMessage) { order = append(order, "second") })

	var all []Kind
	bus.SubscribeAll(func(e Event) { all = append(all, e.Kind()) })

	bus.Publish(NewMessage{Summary: models.MessageSummary{ID: 9}})
	bus.Publish(Notification{Level: LevelInfo, Message: "hi"})
	bus.Publish(MasterPasswordChanged{When: time.Now()})

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, []Kind{KindNewMessage, KindNotification, KindMasterPasswordChanged}, all)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	n := 0
	Subscribe(bus, func(SyncStarted) {
		mu.Lock()
		n++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			bus.Publish(SyncStarted{AccountID: id})
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 50, n)
}

func TestRecorder_OfKind(t *testing.T) {
	var r Recorder
	r.Publish(SyncStarted{AccountID: 1})
	r.Publish(Notification{Level: LevelError, Message: "x"})
	r.Publish(SyncStarted{AccountID: 2})

	assert.Len(t, r.Events(), 3)
	started := OfKind[SyncStarted](&r)
	require.Len(t, started, 2)
	assert.Equal(t, int64(2), started[1].AccountID)
	assert.Empty(t, OfKind[KeyCreated](&r))
}
