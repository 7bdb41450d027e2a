package services

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/gophmail/internal/client/attachments"
	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories"
	"github.com/dmitrijs2005/gophmail/internal/client/storage/storagetest"
	"github.com/dmitrijs2005/gophmail/internal/events"
	"github.com/dmitrijs2005/gophmail/internal/keydirectory"
	"github.com/dmitrijs2005/gophmail/internal/logging"
	"github.com/dmitrijs2005/gophmail/internal/metrics"
	"github.com/dmitrijs2005/gophmail/internal/transport/transporttest"
	"github.com/dmitrijs2005/gophmail/internal/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testIterations = 1000
	testKeyBits    = 1024
)

var masterPassword = []byte("correct horse battery staple")

type testEnv struct {
	db        *sql.DB
	store     *repositories.Store
	rec       *events.Recorder
	srv       *transporttest.Server
	blobs     *attachments.FSStore
	pool      *workerpool.Pool
	metrics   *metrics.Metrics
	directory keydirectory.Directory

	notify   NotificationService
	master   MasterPasswordService
	vault    KeyVaultService
	accounts AccountService
	folders  FolderService
	crypto   MessageCryptoService
	mail     MailService
	sync     SyncService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	db := storagetest.NewDB(t)
	store := repositories.NewStore(db)
	blobs, err := attachments.NewFSStore(t.TempDir())
	require.NoError(t, err)
	pool := workerpool.New(2)
	t.Cleanup(pool.Close)

	e := &testEnv{
		db:      db,
		store:   store,
		rec:     &events.Recorder{},
		srv:     transporttest.NewServer(),
		blobs:   blobs,
		pool:    pool,
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	log := logging.NewNopLogger()
	repos := store.Repos()

	e.directory = keydirectory.NewLocal(repos.Keys)
	e.notify = NewNotificationService(log, e.rec)
	e.master = NewMasterPasswordService(store, testIterations, e.rec, log)
	e.vault = NewKeyVaultService(repos, e.directory, testIterations, e.rec, log)
	e.vault.(*keyVaultService).bits = testKeyBits
	e.accounts = NewAccountService(repos, e.master, e.srv.Factory(), blobs, testIterations, log)
	e.folders = NewFolderService(repos, log)
	e.crypto = NewMessageCryptoService(repos, e.directory, e.master, e.vault, e.notify, e.metrics, log)
	e.mail = NewMailService(MailDeps{
		Store:         store,
		Accounts:      e.accounts,
		Folders:       e.folders,
		Crypto:        e.crypto,
		Transports:    e.srv.Factory(),
		Blobs:         blobs,
		Pool:          pool,
		Notifications: e.notify,
		Events:        e.rec,
		Metrics:       e.metrics,
		Log:           log,
	})
	e.sync = NewSyncService(SyncDeps{
		Store:         store,
		Accounts:      e.accounts,
		Folders:       e.folders,
		Transports:    e.srv.Factory(),
		Blobs:         blobs,
		Pool:          pool,
		Notifications: e.notify,
		Events:        e.rec,
		Metrics:       e.metrics,
		Log:           log,
	})
	return e
}

// unlocked initializes the master password, leaving the service unlocked.
func (e *testEnv) unlocked(t *testing.T) *testEnv {
	t.Helper()
	require.NoError(t, e.master.Initialize(context.Background(), masterPassword))
	return e
}

func (e *testEnv) addAccount(t *testing.T, email string) *models.Account {
	t.Helper()
	acc, err := e.accounts.CreateAccount(context.Background(), AccountInput{
		Email:    email,
		Password: "imap-secret-" + email,
		IMAPHost: "imap.example.com",
		IMAPPort: 993,
		SMTPHost: "smtp.example.com",
		SMTPPort: 465,
	})
	require.NoError(t, err)
	return acc
}

func (e *testEnv) addKey(t *testing.T, accountID int64) *models.KeyMetadata {
	t.Helper()
	meta, err := e.vault.GenerateKeyPair(context.Background(), accountID, masterPassword)
	require.NoError(t, err)
	return meta
}

func notifications(rec *events.Recorder, level events.Level) []events.Notification {
	var out []events.Notification
	for _, n := range events.OfKind[events.Notification](rec) {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

// failAttachmentInserts makes every attachment row insert abort, so the
// surrounding transaction rolls back after the blobs were written.
func (e *testEnv) failAttachmentInserts(t *testing.T) {
	t.Helper()
	storagetest.MustExec(t, e.db, `
		CREATE TRIGGER fail_attachments BEFORE INSERT ON attachments
		BEGIN SELECT RAISE(ABORT, 'attachments disabled'); END;`)
}

// blobFiles lists the files under the attachment store root.
func (e *testEnv) blobFiles(t *testing.T) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(e.blobs.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}
