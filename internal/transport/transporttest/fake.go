// Package transporttest provides an in-memory MailTransport for tests.
package transporttest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/transport"
)

// Server is the shared remote state behind every Fake session.
type Server struct {
	mu       sync.Mutex
	folders  map[string][]*transport.RawMessage
	order    []string
	Sent     []*transport.OutgoingMessage
	Connects int

	// Failure injection.
	ConnectErr    error
	ListErr       error
	SendErr       error
	FetchErr      map[uint64]error
	HeaderErr     map[string]error
	FetchCalls    int
	LastConfig    transport.Config
	LastSinceUIDs map[string]uint64
}

func NewServer() *Server {
	return &Server{
		folders:       make(map[string][]*transport.RawMessage),
		FetchErr:      make(map[uint64]error),
		HeaderErr:     make(map[string]error),
		LastSinceUIDs: make(map[string]uint64),
	}
}

// AddFolder creates an empty folder.
func (s *Server) AddFolder(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[name]; !ok {
		s.folders[name] = nil
		s.order = append(s.order, name)
	}
}

// Deliver appends msg to folder, creating it if needed.
func (s *Server) Deliver(folder string, msg *transport.RawMessage) {
	s.AddFolder(folder)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[folder] = append(s.folders[folder], msg)
}

// Factory returns a transport.Factory opening sessions on s.
func (s *Server) Factory() transport.Factory {
	return func() transport.MailTransport { return &Fake{srv: s} }
}

// SentCount is safe to call concurrently with sends.
func (s *Server) SentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Sent)
}

// Fake is one session against a Server.
type Fake struct {
	srv       *Server
	connected bool
}

var ErrNotConnected = errors.New("fake transport: not connected")

func (f *Fake) Connect(ctx context.Context, cfg transport.Config) error {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	f.srv.Connects++
	f.srv.LastConfig = cfg
	if f.srv.ConnectErr != nil {
		return f.srv.ConnectErr
	}
	f.connected = true
	return nil
}

func (f *Fake) ListFolders(ctx context.Context) ([]string, error) {
	if !f.connected {
		return nil, ErrNotConnected
	}
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	if f.srv.ListErr != nil {
		return nil, f.srv.ListErr
	}
	return append([]string(nil), f.srv.order...), nil
}

func (f *Fake) FetchHeaders(ctx context.Context, folder string, sinceUID uint64, limit int) ([]transport.Header, error) {
	if !f.connected {
		return nil, ErrNotConnected
	}
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	f.srv.LastSinceUIDs[folder] = sinceUID
	if err := f.srv.HeaderErr[folder]; err != nil {
		return nil, err
	}

	var out []transport.Header
	for _, m := range f.srv.folders[folder] {
		if m.UID > sinceUID {
			out = append(out, m.Header)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID > out[j].UID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) FetchMessage(ctx context.Context, folder string, uid uint64) (*transport.RawMessage, error) {
	if !f.connected {
		return nil, ErrNotConnected
	}
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	f.srv.FetchCalls++
	if err := f.srv.FetchErr[uid]; err != nil {
		return nil, err
	}
	for _, m := range f.srv.folders[folder] {
		if m.UID == uid {
			cp := *m
			return &cp, nil
		}
	}
	return nil, common.NotFoundf("uid %d", uid)
}

func (f *Fake) Send(ctx context.Context, msg *transport.OutgoingMessage) error {
	if !f.connected {
		return ErrNotConnected
	}
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	if f.srv.SendErr != nil {
		return f.srv.SendErr
	}
	f.srv.Sent = append(f.srv.Sent, msg)
	return nil
}

func (f *Fake) Disconnect() error {
	f.connected = false
	return nil
}
