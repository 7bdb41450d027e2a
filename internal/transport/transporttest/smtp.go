package transporttest

import (
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/emersion/go-smtp"
)

// Envelope is one message accepted by an SMTPServer.
type Envelope struct {
	From string
	To   []string
	Data []byte
}

// SMTPServer is a real go-smtp server on a loopback port that keeps every
// accepted message.
type SMTPServer struct {
	Host string
	Port int

	mu       sync.Mutex
	received []Envelope
	// RejectRcpt makes RCPT TO fail for this address.
	RejectRcpt string
}

// StartSMTPServer listens on 127.0.0.1 and stops when the test ends.
func StartSMTPServer(t *testing.T) *SMTPServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, port, _ := net.SplitHostPort(l.Addr().String())
	p, _ := strconv.Atoi(port)

	rec := &SMTPServer{Host: host, Port: p}
	s := smtp.NewServer(rec)
	s.Domain = "localhost"
	s.AllowInsecureAuth = true

	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })
	return rec
}

// Received returns a copy of the accepted messages.
func (s *SMTPServer) Received() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.received...)
}

func (s *SMTPServer) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &smtpSession{srv: s}, nil
}

type smtpSession struct {
	srv *SMTPServer
	cur Envelope
}

func (s *smtpSession) Reset()        { s.cur = Envelope{} }
func (s *smtpSession) Logout() error { return nil }

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.cur.From = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.srv.RejectRcpt != "" && to == s.srv.RejectRcpt {
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "no such user"}
	}
	s.cur.To = append(s.cur.To, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.cur.Data = b
	s.srv.mu.Lock()
	s.srv.received = append(s.srv.received, s.cur)
	s.srv.mu.Unlock()
	return nil
}
