package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	unlocked bool

	calls []string
	args  map[string][]string
	fail  map[string]error
}

func newFakeExec(unlocked bool) *fakeExec {
	return &fakeExec{unlocked: unlocked, args: map[string][]string{}, fail: map[string]error{}}
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	if args != nil {
		f.args[name] = args
	}
	return f.fail[name]
}

func (f *fakeExec) isUnlocked() bool { return f.unlocked }
func (f *fakeExec) Init(ctx context.Context) error {
	f.unlocked = true
	return f.record("init", nil)
}
func (f *fakeExec) Unlock(ctx context.Context) error {
	f.unlocked = true
	return f.record("unlock", nil)
}
func (f *fakeExec) Lock(ctx context.Context) error {
	f.unlocked = false
	return f.record("lock", nil)
}
func (f *fakeExec) ChangePassword(ctx context.Context) error { return f.record("passwd", nil) }
func (f *fakeExec) AddAccount(ctx context.Context, args []string) error {
	return f.record("addaccount", args)
}
func (f *fakeExec) Accounts(ctx context.Context) error { return f.record("accounts", nil) }
func (f *fakeExec) Use(ctx context.Context, args []string) error { return f.record("use", args) }
func (f *fakeExec) TestAccount(ctx context.Context) error { return f.record("test", nil) }
func (f *fakeExec) SetAccountPassword(ctx context.Context) error { return f.record("setpass", nil) }
func (f *fakeExec) RemoveAccount(ctx context.Context, a []string) error { return f.record("rmaccount", a) }
func (f *fakeExec) KeyGen(ctx context.Context) error { return f.record("keygen", nil) }
func (f *fakeExec) ImportKey(ctx context.Context, args []string) error {
	return f.record("importkey", args)
}
func (f *fakeExec) PublishKey(ctx context.Context) error { return f.record("publish", nil) }
func (f *fakeExec) Keys(ctx context.Context) error { return f.record("keys", nil) }
func (f *fakeExec) Folders(ctx context.Context) error { return f.record("folders", nil) }
func (f *fakeExec) Sync(ctx context.Context, args []string) error { return f.record("sync", args) }
func (f *fakeExec) List(ctx context.Context, args []string) error { return f.record("list", args) }
func (f *fakeExec) Show(ctx context.Context, args []string) error { return f.record("show", args) }
func (f *fakeExec) Send(ctx context.Context, args []string) error { return f.record("send", args) }
func (f *fakeExec) Delete(ctx context.Context, args []string) error { return f.record("delete", args) }
func (f *fakeExec) SaveAttachment(ctx context.Context, a []string) error { return f.record("save", a) }
func (f *fakeExec) History(ctx context.Context) error { return f.record("history", nil) }

// capturePrintln swaps printlnFn for a recorder.
func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func runLines(exec execIface, lines ...string) {
	reader := bufio.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	runREPL(context.Background(), exec, func() string { return "status" }, reader)
}

func TestRunREPL_UnlockFlowAndCommands(t *testing.T) {
	out := capturePrintln(t)
	exec := newFakeExec(false)

	runLines(exec,
		"help",
		"list",
		"unlock",
		"help",
		`send -to bob@example.com -subject "hello there"`,
		"l -folder INBOX",
		"show 12",
		"sync",
		"foobar",
		"exit",
		"keys",
	)

	assert.Equal(t, []string{"unlock", "send", "list", "show", "sync"}, exec.calls)
	assert.Equal(t, []string{"-to", "bob@example.com", "-subject", "hello there"}, exec.args["send"])
	assert.Equal(t, []string{"-folder", "INBOX"}, exec.args["list"])
	assert.Equal(t, []string{"12"}, exec.args["show"])

	assert.Contains(t, *out, helpLocked)
	assert.Contains(t, *out, helpUnlocked)
	assert.Contains(t, *out, "Error: "+errNeedUnlock.Error())
	assert.Contains(t, *out, "Unknown command: foobar")
	assert.Equal(t, "Bye!", (*out)[len(*out)-1])
}

func TestRunREPL_LockedRejectsUnknownAndMailCommands(t *testing.T) {
	out := capturePrintln(t)
	exec := newFakeExec(false)

	runLines(exec, "send", "history", "nope", "quit")

	assert.Empty(t, exec.calls)
	assert.Contains(t, *out, "Unknown command: nope")
}

func TestRunREPL_HandlerErrorKeepsLoopRunning(t *testing.T) {
	out := capturePrintln(t)
	exec := newFakeExec(true)
	exec.fail["keygen"] = errors.New("no account selected")

	runLines(exec, "keygen", "keys", "lock", "keys")

	assert.Equal(t, []string{"keygen", "keys", "lock"}, exec.calls)
	assert.Contains(t, *out, "Error: no account selected")
}

func TestRunREPL_LastLineWithoutNewline(t *testing.T) {
	capturePrintln(t)
	exec := newFakeExec(true)

	runLines(exec, "accounts", "history")

	assert.Equal(t, []string{"accounts", "history"}, exec.calls)
}

func TestRunREPL_BadQuotingReported(t *testing.T) {
	out := capturePrintln(t)
	exec := newFakeExec(true)

	runLines(exec, `send -subject "unterminated`, "exit")

	require.Empty(t, exec.calls)
	found := false
	for _, l := range *out {
		if strings.HasPrefix(l, "Error:") {
			found = true
		}
	}
	assert.True(t, found)
}
