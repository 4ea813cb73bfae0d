package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ent0n29/gearhead/internal/archive"
	"github.com/ent0n29/gearhead/internal/completion"
	"github.com/ent0n29/gearhead/internal/convo"
	"github.com/ent0n29/gearhead/internal/observability"
	"github.com/ent0n29/gearhead/internal/persona"
)

type stubClient struct {
	requests []completion.Request
	reply    string
	err      error
}

func (c *stubClient) Name() string { return "stub" }

func (c *stubClient) Complete(_ context.Context, req completion.Request) (string, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

type memArchive struct {
	saved []archive.TurnRecord
	err   error
}

func (a *memArchive) SaveTurn(_ context.Context, rec archive.TurnRecord) error {
	if a.err != nil {
		return a.err
	}
	a.saved = append(a.saved, rec)
	return nil
}

func (a *memArchive) Close() error { return nil }

func newTestDispatcher(client completion.Client, arch archive.Store) (*Dispatcher, *convo.Store) {
	store := convo.NewStore(convo.Config{})
	return NewDispatcher(Config{Prefix: "!", MaxTokens: 300, Temperature: 0.7}, store, client, arch, nil, nil), store
}

func TestDispatcherRemembersSuccessfulExchange(t *testing.T) {
	client := &stubClient{reply: "Get a Miata."}
	arch := &memArchive{}
	d, store := newTestDispatcher(client, arch)

	reply, err := d.Handle(context.Background(), Inbound{UserID: "u1", DisplayName: "Ann", Text: "what should I drive"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !reply.Remembered || !reply.HasContext || reply.Command != CommandConverse {
		t.Fatalf("reply = %+v", reply)
	}
	if len(reply.Chunks) != 1 || reply.Chunks[0] != "Get a Miata." {
		t.Fatalf("Chunks = %v", reply.Chunks)
	}

	req := client.requests[0]
	if req.System != persona.Prompt || req.MaxTokens != 300 {
		t.Fatalf("request = %+v", req)
	}
	if len(req.Turns) != 1 || req.Turns[0].Content != "Ann: what should I drive" {
		t.Fatalf("request turns = %+v", req.Turns)
	}

	h := store.History("u1")
	if len(h) != 2 || h[0].Role != convo.RoleUser || h[1].Content != "Get a Miata." {
		t.Fatalf("History() = %+v", h)
	}
	if len(arch.saved) != 2 || arch.saved[0].ExchangeID != reply.ExchangeID {
		t.Fatalf("archive = %+v", arch.saved)
	}

	if _, err := d.Handle(context.Background(), Inbound{UserID: "u1", DisplayName: "Ann", Text: "!ask why"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	second := client.requests[1]
	want := []string{"Ann: what should I drive", "Get a Miata.", "Ann: why"}
	if len(second.Turns) != len(want) {
		t.Fatalf("second request turns = %+v", second.Turns)
	}
	for i, w := range want {
		if second.Turns[i].Content != w {
			t.Fatalf("second.Turns[%d] = %q, want %q", i, second.Turns[i].Content, w)
		}
	}
}

func TestDispatcherDoesNotRememberFailures(t *testing.T) {
	client := &stubClient{err: errors.New("upstream down")}
	d, store := newTestDispatcher(client, nil)

	reply, err := d.Handle(context.Background(), Inbound{UserID: "u1", DisplayName: "Ann", Text: "!roast Prius"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if reply.Remembered || reply.HasContext {
		t.Fatalf("reply = %+v, want nothing remembered", reply)
	}
	if len(reply.Chunks) != 1 || reply.Chunks[0] != persona.FallbackRoast {
		t.Fatalf("Chunks = %v, want roast fallback", reply.Chunks)
	}
	if store.HasContext("u1") {
		t.Fatalf("HasContext() = true after failed completion")
	}
}

func TestDispatcherWrapsCommandPrompts(t *testing.T) {
	client := &stubClient{reply: "ok"}
	d, _ := newTestDispatcher(client, nil)

	cases := map[string]string{
		"!roast Civic":     "Bob: Roast this car and tell me everything wrong with it: Civic",
		"!suggest cheap":   "Bob: Suggest some good cars for: cheap. Give me real recommendations with reasons why.",
		"!specs Supra MK4": "Bob: Give me detailed technical specs and performance info for: Supra MK4. I want the real numbers and details.",
	}
	for text, want := range cases {
		client.requests = nil
		if _, err := d.Handle(context.Background(), Inbound{UserID: "u-" + text, DisplayName: "Bob", Text: text}); err != nil {
			t.Fatalf("Handle(%q) error = %v", text, err)
		}
		turns := client.requests[0].Turns
		if got := turns[len(turns)-1].Content; got != want {
			t.Fatalf("Handle(%q) last turn = %q, want %q", text, got, want)
		}
	}
}

func TestDispatcherLocalCommands(t *testing.T) {
	client := &stubClient{reply: "V8"}
	d, store := newTestDispatcher(client, nil)
	ctx := context.Background()

	reply, _ := d.Handle(ctx, Inbound{UserID: "u1", DisplayName: "Ann", Text: "!context"})
	if reply.Chunks[0] != "This is a new conversation." {
		t.Fatalf("!context = %q", reply.Chunks[0])
	}

	_, _ = d.Handle(ctx, Inbound{UserID: "u1", DisplayName: "Ann", Text: "best engine?"})
	reply, _ = d.Handle(ctx, Inbound{UserID: "u1", DisplayName: "Ann", Text: "!context"})
	if reply.Chunks[0] != "Recent topics: best engine?" {
		t.Fatalf("!context = %q", reply.Chunks[0])
	}

	reply, _ = d.Handle(ctx, Inbound{UserID: "u1", DisplayName: "Ann", Text: "!memory"})
	if !strings.Contains(reply.Chunks[0], "1 users, 2 messages") {
		t.Fatalf("!memory = %q", reply.Chunks[0])
	}

	reply, _ = d.Handle(ctx, Inbound{UserID: "u1", DisplayName: "Ann", Text: "!clear"})
	if reply.HasContext || store.HasContext("u1") {
		t.Fatalf("!clear left context behind")
	}

	reply, _ = d.Handle(ctx, Inbound{UserID: "u1", DisplayName: "Ann", Text: "!hello"})
	if reply.Chunks[0] != "Hello Ann! How can I assist you today?" {
		t.Fatalf("!hello = %q", reply.Chunks[0])
	}

	reply, _ = d.Handle(ctx, Inbound{UserID: "u1", Text: "!ask"})
	if !strings.HasPrefix(reply.Chunks[0], "Usage: `!ask") {
		t.Fatalf("!ask without args = %q", reply.Chunks[0])
	}

	reply, _ = d.Handle(ctx, Inbound{UserID: "u1", Text: "!nope"})
	if !strings.Contains(reply.Chunks[0], "`!help`") {
		t.Fatalf("unknown command = %q", reply.Chunks[0])
	}

	reply, _ = d.Handle(ctx, Inbound{UserID: "u1", Text: "!help"})
	if !strings.Contains(reply.Chunks[0], "Gearhead") {
		t.Fatalf("!help = %q", reply.Chunks[0])
	}
	if len(client.requests) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(client.requests))
	}
}

func TestDispatcherPing(t *testing.T) {
	d, _ := newTestDispatcher(&stubClient{}, nil)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base.Add(42 * time.Millisecond) }

	reply, err := d.Handle(context.Background(), Inbound{UserID: "u1", Text: "!ping", SentAt: base})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if reply.Chunks[0] != "Pong! Latency: 42ms" {
		t.Fatalf("!ping = %q", reply.Chunks[0])
	}
}

func TestDispatcherRejectsEmptyInput(t *testing.T) {
	d, _ := newTestDispatcher(&stubClient{}, nil)
	if _, err := d.Handle(context.Background(), Inbound{UserID: "u1", Text: "   "}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Handle(blank) error = %v, want ErrEmptyInput", err)
	}
	if _, err := d.Handle(context.Background(), Inbound{Text: "hi"}); err == nil {
		t.Fatalf("Handle(no user) expected error")
	}
}

func TestDispatcherChunksLongReplies(t *testing.T) {
	client := &stubClient{reply: strings.Repeat("a", MaxChunkRunes*2+1)}
	d, _ := newTestDispatcher(client, nil)
	reply, _ := d.Handle(context.Background(), Inbound{UserID: "u1", Text: "go long"})
	if len(reply.Chunks) != 3 {
		t.Fatalf("len(Chunks) = %d, want 3", len(reply.Chunks))
	}
}

func TestDispatcherArchiveFailureIsNotFatal(t *testing.T) {
	client := &stubClient{reply: "ok"}
	store := convo.NewStore(convo.Config{})
	metrics := observability.NewMetrics(fmt.Sprintf("test_chat_%d", time.Now().UnixNano()))
	d := NewDispatcher(Config{}, store, client, &memArchive{err: errors.New("db gone")}, metrics, nil)

	reply, err := d.Handle(context.Background(), Inbound{UserID: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !reply.Remembered || !store.HasContext("u1") {
		t.Fatalf("reply = %+v, want exchange remembered despite archive failure", reply)
	}
	snap := metrics.SnapshotStages()
	if len(snap.Stages) == 0 {
		t.Fatalf("no stage latencies recorded")
	}
}

// gatedClient holds every completion until release is closed, then echoes
// the question back so replies can be matched to prompts.
type gatedClient struct {
	arrived chan struct{}
	release chan struct{}
}

func (c *gatedClient) Name() string { return "gated" }

func (c *gatedClient) Complete(ctx context.Context, req completion.Request) (string, error) {
	c.arrived <- struct{}{}
	select {
	case <-c.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	last := req.Turns[len(req.Turns)-1].Content
	return "re " + strings.TrimPrefix(last, "Ann: "), nil
}

func TestDispatcherConcurrentExchangesStayPaired(t *testing.T) {
	const workers = 7
	client := &gatedClient{arrived: make(chan struct{}, workers), release: make(chan struct{})}
	d, store := newTestDispatcher(client, nil)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			_, err := d.Handle(context.Background(), Inbound{UserID: "U", DisplayName: "Ann", Text: fmt.Sprintf("q%d", w)})
			errs <- err
		}(w)
	}
	for w := 0; w < workers; w++ {
		<-client.arrived
	}
	close(client.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}

	h := store.History("U")
	if len(h) != 2*workers {
		t.Fatalf("len(History()) = %d, want %d", len(h), 2*workers)
	}
	for i := 0; i < len(h); i += 2 {
		q, a := h[i], h[i+1]
		if q.Role != convo.RoleUser || a.Role != convo.RoleAssistant || a.Content != "re "+q.Content {
			t.Fatalf("History()[%d:%d] = %s/%q, %s/%q, want a matching pair", i, i+2, q.Role, q.Content, a.Role, a.Content)
		}
	}
}

func TestDispatcherHelpListsEveryCommand(t *testing.T) {
	d, _ := newTestDispatcher(&stubClient{}, nil)
	reply, err := d.Handle(context.Background(), Inbound{UserID: "u1", Text: "!help"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	help := strings.Join(reply.Chunks, "")
	for _, name := range []string{"ping", "ask", "roast", "suggest", "specs", "context", "clear", "memory", "hello"} {
		if !strings.Contains(help, "`!"+name) {
			t.Fatalf("!help missing %s: %q", name, help)
		}
	}
}
