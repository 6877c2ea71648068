package console

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microcli/config"
	"microcli/internal/link"
	"microcli/internal/metrics"
	"microcli/util"
)

// ── helpers ──────────────────────────────────────────────────────────

// echoBoard answers every line with the same text.  Lines it receives
// are also reported on the returned channel.
func echoBoard(t *testing.T) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 64)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				sc := bufio.NewScanner(c)
				for sc.Scan() {
					got <- sc.Text()
					fmt.Fprintf(c, "%s\r\n", sc.Text())
				}
			}(c)
		}
	}()
	return ln.Addr().String(), got
}

func newController(t *testing.T, addr string) *link.Controller {
	t.Helper()
	lk := link.New(link.Options{Address: addr, ConnectTimeout: time.Second})
	t.Cleanup(func() {
		lk.Close() //nolint:errcheck
		for range lk.Events() {
		}
	})
	return lk
}

func quiet() *util.Logger {
	l := util.NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

// fakeLink records what the console asks of it.
type fakeLink struct {
	mu     sync.Mutex
	sent   []string
	starts int
	stops  int
	events chan link.Event
	stats  *metrics.Collector
}

func newFakeLink() *fakeLink {
	return &fakeLink{events: make(chan link.Event), stats: metrics.New()}
}

func (f *fakeLink) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeLink) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeLink) SendString(s string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, s)
	return nil
}

func (f *fakeLink) Events() <-chan link.Event   { return f.events }
func (f *fakeLink) Addr() string                { return "board:2000" }
func (f *fakeLink) Metrics() *metrics.Collector { return f.stats }

// ── end to end ───────────────────────────────────────────────────────

func TestConsole_SendAndEcho(t *testing.T) {
	addr, got := echoBoard(t)
	var out bytes.Buffer
	c := &Console{
		Link:   newController(t, addr),
		In:     strings.NewReader("toggle LED3\n\n   \n:leds-on\n"),
		Out:    &out,
		Styles: PlainStyles(),
		Macros: config.DefaultMacros(),
		Wait:   300 * time.Millisecond,
		Logger: quiet(),
	}

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, "toggle LED3", <-got)
	assert.Equal(t, "enable TOGGLE_LEDS", <-got)

	text := out.String()
	assert.Contains(t, text, "Me:  toggle LED3\n")
	assert.Contains(t, text, "Dev:  toggle LED3\n")
	assert.Contains(t, text, "Me:  enable TOGGLE_LEDS\n")
	assert.Contains(t, text, "Dev:  enable TOGGLE_LEDS\n")
	assert.Equal(t, 2, strings.Count(text, "Me:"), "blank lines must not be sent:\n%s", text)
}

func TestConsole_QuitStopsInput(t *testing.T) {
	addr, got := echoBoard(t)
	var out bytes.Buffer
	c := &Console{
		Link:   newController(t, addr),
		In:     strings.NewReader(":quit\nnever sent\n"),
		Out:    &out,
		Styles: PlainStyles(),
		Wait:   time.Minute,
		Logger: quiet(),
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal(":quit did not end the console")
	}

	select {
	case l := <-got:
		t.Fatalf("board received %q after :quit", l)
	case <-time.After(50 * time.Millisecond):
	}
	assert.NotContains(t, out.String(), "Me:")
}

func TestConsole_ConnectFailureShown(t *testing.T) {
	port, err := util.FindFreePort()
	require.NoError(t, err)

	var out bytes.Buffer
	c := &Console{
		Link:   newController(t, util.FormatAddr("127.0.0.1", port)),
		In:     strings.NewReader("toggle LED3\n"),
		Out:    &out,
		Styles: PlainStyles(),
		Wait:   200 * time.Millisecond,
		Logger: quiet(),
	}
	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "!! connect failure")
	assert.Contains(t, text, "!! invalid state")
}

func TestConsole_ContextCancel(t *testing.T) {
	fl := newFakeLink()
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Console{Link: fl, In: pr, Out: io.Discard, Styles: PlainStyles(), Logger: quiet()}

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
	assert.Equal(t, 1, fl.stops, "link must be stopped on exit")
}

// ── commands ─────────────────────────────────────────────────────────

func TestConsole_Commands(t *testing.T) {
	fl := newFakeLink()
	var out bytes.Buffer
	c := &Console{
		Link:   fl,
		In:     strings.NewReader(":help\n:stats\n:nope\n::raw colon\n:reconnect\n: led3 \nplain\r\n"),
		Out:    &out,
		Styles: PlainStyles(),
		Macros: map[string]string{"led3": "toggle LED3"},
		Logger: quiet(),
	}
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{":raw colon", "toggle LED3", "plain"}, fl.sent)
	assert.Equal(t, 2, fl.starts, "initial start plus :reconnect")
	assert.Equal(t, 2, fl.stops, ":reconnect stop plus final stop")

	text := out.String()
	assert.Contains(t, text, "commands: :quit")
	assert.Contains(t, text, ":led3")
	assert.Contains(t, text, `"lines_out"`)
	assert.Contains(t, text, "unknown command :nope")
	assert.Contains(t, text, "reconnecting to board:2000")
}

// ── formatting ───────────────────────────────────────────────────────

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		ev   link.Event
		want string
	}{
		{"sent", link.Event{Kind: link.KindSent, Payload: []byte("toggle LED3")}, "Me:  toggle LED3"},
		{"received", link.Event{Kind: link.KindReceived, Payload: []byte("LED3 on")}, "Dev:  LED3 on"},
		{"fault", link.Event{Kind: link.KindFault, Fault: &link.Fault{Reason: link.EndOfStream, Err: io.EOF}}, "!! end of stream: EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.ev, PlainStyles()))
		})
	}
}

func TestStylesFor_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := StylesFor(&buf, false)
	assert.Equal(t, "Dev:", s.Dev.Render("Dev:"))
}
