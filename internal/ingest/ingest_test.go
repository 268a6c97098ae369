package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"fabricviz/internal/domain"
	"fabricviz/internal/observability"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
	err   error
}

func (r *recordingSubmitter) Submit(_ context.Context, snap domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.snaps = append(r.snaps, snap)
	return nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recordingSubmitter) get(i int) domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[i]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func quiet() *log.Logger {
	return log.New(io.Discard)
}

func newCollector(t *testing.T) *observability.Collector {
	t.Helper()
	c, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	return c
}

func TestFileSourceReplaysInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.yaml")
	content := "routers: [a, b]\n---\nlinks:\n  - {id: ab, src: a, dst: b}\nsource: lab\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := &recordingSubmitter{}
	src := NewFileSource(path, false, quiet(), nil)
	if err := src.Run(context.Background(), sub); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sub.count() != 2 {
		t.Fatalf("submitted %d snapshots, want 2", sub.count())
	}
	first, second := sub.get(0), sub.get(1)
	if !first.HasRouters() || first.HasLinks() || first.Source != "file" {
		t.Errorf("first = %+v", first)
	}
	if second.HasRouters() || !second.HasLinks() || second.Source != "lab" {
		t.Errorf("second = %+v", second)
	}
}

func TestFileSourceErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		src := NewFileSource(filepath.Join(t.TempDir(), "nope.json"), false, quiet(), nil)
		if err := src.Run(context.Background(), &recordingSubmitter{}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		os.WriteFile(path, []byte(`{"routers": [`), 0o644)
		src := NewFileSource(path, false, quiet(), nil)
		if err := src.Run(context.Background(), &recordingSubmitter{}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("submit failure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ok.json")
		os.WriteFile(path, []byte(`{"routers":["a"]}`), 0o644)
		stopped := errors.New("stopped")
		src := NewFileSource(path, false, quiet(), nil)
		if err := src.Run(context.Background(), &recordingSubmitter{err: stopped}); !errors.Is(err, stopped) {
			t.Errorf("Run = %v, want wrapped submit error", err)
		}
	})
}

func TestFileSourceWatchReplaysOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.json")
	if err := os.WriteFile(path, []byte(`{"routers":["a"]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := &recordingSubmitter{}
	src := NewFileSource(path, true, quiet(), nil)
	src.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx, sub) }()

	waitFor(t, "initial replay", func() bool { return sub.count() == 1 })
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"routers":["a","b"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "replay after change", func() bool { return sub.count() >= 2 })

	last := sub.get(sub.count() - 1)
	if len(last.Routers) != 2 {
		t.Errorf("last replay = %+v", last)
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v", err)
	}
}

func TestWebSocketSource(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subscribed <- string(msg)

		conn.WriteMessage(websocket.TextMessage, []byte(`{"routers":["r1","r2"],"source":"fabric"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"links":[{"id":"l1","src":"r1","dst":"r2"}]}`))

		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	c := newCollector(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	src := NewWebSocketSource(url, `{"type":"subscribe"}`, Backoff{Initial: 10 * time.Millisecond}, quiet(), c)
	sub := &recordingSubmitter{}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx, sub) }()

	select {
	case msg := <-subscribed:
		if msg != `{"type":"subscribe"}` {
			t.Errorf("subscribe message = %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no subscribe message")
	}

	waitFor(t, "two snapshots", func() bool { return sub.count() == 2 })
	if got := sub.get(0); got.Source != "fabric" || len(got.Routers) != 2 {
		t.Errorf("first = %+v", got)
	}
	if got := sub.get(1); got.Source != "websocket" || !got.HasLinks() {
		t.Errorf("second = %+v", got)
	}
	if got := testutil.ToFloat64(c.IngestMessages.WithLabelValues("websocket", "error")); got != 1 {
		t.Errorf("decode errors = %v, want 1", got)
	}

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWebSocketSourceBacksOffDroppedConnections(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var dials atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		dials.Add(1)
		conn.Close()
	}))
	defer srv.Close()

	c := newCollector(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	src := NewWebSocketSource(url, "", Backoff{Initial: 50 * time.Millisecond, Max: 200 * time.Millisecond}, quiet(), c)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := src.Run(ctx, &recordingSubmitter{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want deadline exceeded", err)
	}

	// 50ms doubling up to 200ms, with jitter, fits well under 20 attempts in 500ms
	n := dials.Load()
	if n < 2 || n > 20 {
		t.Errorf("dials = %d, want a handful of spaced attempts", n)
	}
	if got := testutil.ToFloat64(c.IngestReconnect.WithLabelValues("websocket")); got < 1 {
		t.Errorf("reconnects = %v, want at least one", got)
	}
}

func TestPauseResetsOnlyAfterTraffic(t *testing.T) {
	p := newPipeline("test", quiet(), nil)
	bo := Backoff{Initial: time.Millisecond, Max: time.Second}.policy()
	bo.RandomizationFactor = 0
	bo.Reset()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := p.pause(ctx, bo, 0); err != nil {
			t.Fatal(err)
		}
	}
	grown := bo.NextBackOff()
	if grown <= 2*time.Millisecond {
		t.Errorf("backoff after silent connections = %v, want it to grow", grown)
	}

	if err := p.pause(ctx, bo, 5); err != nil {
		t.Fatal(err)
	}
	if next := bo.NextBackOff(); next >= grown {
		t.Errorf("backoff after traffic = %v, want reset below %v", next, grown)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := p.pause(cancelled, bo, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("pause = %v, want context.Canceled", err)
	}
}

func TestWebSocketSourceRetriesDial(t *testing.T) {
	c := newCollector(t)
	src := NewWebSocketSource("ws://127.0.0.1:1/none", "", Backoff{Initial: 5 * time.Millisecond, Max: 10 * time.Millisecond}, quiet(), c)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := src.Run(ctx, &recordingSubmitter{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want deadline exceeded", err)
	}
	if got := testutil.ToFloat64(c.IngestReconnect.WithLabelValues("websocket")); got < 2 {
		t.Errorf("reconnects = %v, want several", got)
	}
}

func TestRedisSourceRetriesSubscribe(t *testing.T) {
	c := newCollector(t)
	opts := &redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond}
	src := NewRedisSource(opts, "fabric", Backoff{Initial: 5 * time.Millisecond, Max: 10 * time.Millisecond}, quiet(), c)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := src.Run(ctx, &recordingSubmitter{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want deadline exceeded", err)
	}
	if got := testutil.ToFloat64(c.IngestReconnect.WithLabelValues("redis")); got < 1 {
		t.Errorf("reconnects = %v, want at least one", got)
	}
}

type scriptedSource struct {
	name string
	run  func(ctx context.Context, sub Submitter) error
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Run(ctx context.Context, sub Submitter) error {
	return s.run(ctx, sub)
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry(quiet())

	blocking := &scriptedSource{name: "live", run: func(ctx context.Context, sub Submitter) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	failing := &scriptedSource{name: "broken", run: func(ctx context.Context, sub Submitter) error {
		return errors.New("no route to fabric")
	}}

	if err := reg.Register(blocking); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(failing); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(&scriptedSource{name: "live"}); err == nil {
		t.Error("duplicate name should be rejected")
	}

	infos := reg.List()
	if len(infos) != 2 || infos[0].State != StatePending {
		t.Fatalf("before start: %+v", infos)
	}

	if err := reg.Start(context.Background(), &recordingSubmitter{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := reg.Start(context.Background(), &recordingSubmitter{}); err == nil {
		t.Error("second Start should fail")
	}
	if err := reg.Register(&scriptedSource{name: "late"}); err == nil {
		t.Error("Register after Start should fail")
	}

	waitFor(t, "broken source failure", func() bool {
		return reg.List()[1].State == StateFailed
	})

	infos = reg.List()
	if infos[0].State != StateRunning || infos[0].StartedAt.IsZero() {
		t.Errorf("live = %+v", infos[0])
	}
	if infos[1].LastError != "no route to fabric" {
		t.Errorf("broken = %+v", infos[1])
	}

	reg.Stop()

	infos = reg.List()
	if infos[0].State != StateStopped || infos[0].StoppedAt.IsZero() {
		t.Errorf("after stop: %+v", infos[0])
	}
}
