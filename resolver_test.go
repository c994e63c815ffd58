package confcascade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/confcascade/cache/memory"
	"github.com/unkn0wn-root/confcascade/parser"
	"github.com/unkn0wn-root/confcascade/remote"
	"github.com/unkn0wn-root/confcascade/retry"
)

// fakeRemote is a scriptable remote.Client.
type fakeRemote struct {
	mu        sync.Mutex
	content   string
	err       error
	failFirst int // fail this many calls before succeeding
	delay     time.Duration
	calls     int
}

func (f *fakeRemote) fetch(path string) (*remote.Asset, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	content, err, failFirst, delay := f.content, f.err, f.failFirst, f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failFirst > 0 && call <= failFirst {
		return nil, &remote.APIError{Status: 500, Message: "upstream blew up"}
	}
	if err != nil {
		return nil, err
	}
	return &remote.Asset{
		Path:        path,
		Content:     []byte(content),
		ContentHash: ContentHash(content),
		Size:        int64(len(content)),
	}, nil
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStore is an in-memory DurableStore.
type fakeStore struct {
	mu       sync.Mutex
	content  map[string]string
	loadErr  error
	storeErr error
	stores   int
}

var _ DurableStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore { return &fakeStore{content: make(map[string]string)} }

func (f *fakeStore) LoadContent(_ context.Context, key, _ string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return "", false, f.loadErr
	}
	c, ok := f.content[key]
	return c, ok, nil
}

func (f *fakeStore) StoreContent(_ context.Context, key, content, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores++
	if f.storeErr != nil {
		return f.storeErr
	}
	f.content[key] = content
	return nil
}

func (f *fakeStore) storeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 2, MinDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, DisableJitter: true}
}

func newTestNetworkSource(t *testing.T, fr *fakeRemote, priority int, optsOpt func(*NetworkSourceOptions)) *NetworkSource {
	t.Helper()
	opts := NetworkSourceOptions{
		Client:   remoteFunc(fr.fetch),
		Repo:     "config-repo",
		Path:     "configs/app.json",
		Priority: priority,
		Cache:    memory.New(memory.Config{}),
		Retry:    fastRetry(),
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	src, err := NewNetworkSource(opts)
	if err != nil {
		t.Fatalf("NewNetworkSource: %v", err)
	}
	return src
}

// remoteFunc adapts a fetch func to remote.Client for tests.
type remoteFunc func(path string) (*remote.Asset, error)

func (f remoteFunc) FetchAsset(_ context.Context, path, _ string) (*remote.Asset, error) {
	return f(path)
}

func newTestResolver(t *testing.T, sources ...Source) *Resolver[map[string]any] {
	t.Helper()
	r, err := New[map[string]any](Options[map[string]any]{
		Sources: sources,
		Parser:  parser.JSON[map[string]any]{},
		Project: func(m map[string]any) map[string]any { return m },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func mustDurableSource(t *testing.T, store DurableStore, priority int) *DurableSource {
	t.Helper()
	src, err := NewDurableSource(DurableSourceOptions{
		Store:    store,
		Key:      "app-config",
		Priority: priority,
	})
	if err != nil {
		t.Fatalf("NewDurableSource: %v", err)
	}
	return src
}

// ==============================
// Fallback & write-through
// ==============================

// TestFallbackToDurable verifies that a failing network source falls through
// to the durable one and the winner is recorded.
func TestFallbackToDurable(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRemote{err: &remote.APIError{Status: 503, Message: "down"}}
	fs := newFakeStore()
	fs.content["app-config"] = `{"a": 1}`

	r := newTestResolver(t,
		newTestNetworkSource(t, fr, 1, nil),
		mustDurableSource(t, fs, 2),
	)
	defer r.Destroy()

	v, err := r.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != float64(1) {
		t.Fatalf("Get(a) = %v, want 1", v)
	}
	if name, ok := r.LastSource(); !ok || name != "database" {
		t.Fatalf("LastSource = %q ok=%v, want database", name, ok)
	}
	// 503 is transient: the whole attempt budget was spent before falling back
	if got := fr.callCount(); got != 2 {
		t.Fatalf("remote calls = %d, want 2", got)
	}
}

// TestWriteThroughOnNetworkWin verifies the raw content lands in the durable
// store byte-identically after a network success.
func TestWriteThroughOnNetworkWin(t *testing.T) {
	ctx := context.Background()
	raw := `{"a":{"b":1}}`
	fr := &fakeRemote{content: raw}
	fs := newFakeStore()

	r := newTestResolver(t,
		newTestNetworkSource(t, fr, 1, nil),
		mustDurableSource(t, fs, 2),
	)
	defer r.Destroy()

	v, err := r.Get(ctx, "a.b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != float64(1) {
		t.Fatalf("Get(a.b) = %v, want 1", v)
	}
	if name, _ := r.LastSource(); name != "network" {
		t.Fatalf("LastSource = %q, want network", name)
	}
	if got := fs.content["app-config"]; got != raw {
		t.Fatalf("durable content = %q, want %q", got, raw)
	}

	// valid but absent path is nil without error
	if v, err := r.Get(ctx, "a.c"); err != nil || v != nil {
		t.Fatalf("Get(a.c) = %v, %v; want nil, nil", v, err)
	}

	all, err := r.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	nested, ok := all["a"].(map[string]any)
	if !ok || nested["b"] != float64(1) {
		t.Fatalf("All()[a] = %v, want map with b=1", all["a"])
	}
}

func TestDurableWinnerSkipsWriteThrough(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.content["app-config"] = `{"a": 1}`

	r := newTestResolver(t, mustDurableSource(t, fs, 1))
	defer r.Destroy()

	if _, err := r.Get(ctx, "a"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := fs.storeCount(); got != 0 {
		t.Fatalf("store calls = %d, want 0", got)
	}
}

func TestWriteThroughFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRemote{content: `{"a": 1}`}
	fs := newFakeStore()
	fs.storeErr = errors.New("disk on fire")

	r := newTestResolver(t,
		newTestNetworkSource(t, fr, 1, nil),
		mustDurableSource(t, fs, 2),
	)
	defer r.Destroy()

	v, err := r.Get(ctx, "a")
	if err != nil || v != float64(1) {
		t.Fatalf("Get = %v, %v; write-through failure must not surface", v, err)
	}
}

// ==============================
// Exhaustion & parse failures
// ==============================

func TestAllSourcesFailYieldsAbsentMarker(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRemote{err: &remote.APIError{Status: 502, Message: "bad gateway"}}
	fs := newFakeStore()
	fs.loadErr = errors.New("connection refused")

	r := newTestResolver(t,
		newTestNetworkSource(t, fr, 1, nil),
		mustDurableSource(t, fs, 2),
	)
	defer r.Destroy()

	if _, err := r.Get(ctx, ""); !errors.Is(err, ErrNoConfiguration) {
		t.Fatalf("Get err = %v, want ErrNoConfiguration", err)
	}
	if _, err := r.Get(ctx, "any.path"); !errors.Is(err, ErrNoConfiguration) {
		t.Fatalf("Get(any.path) err = %v, want ErrNoConfiguration", err)
	}
	if !r.Initialized() {
		t.Fatalf("resolver should be initialized even when empty")
	}
	if _, ok := r.LastSource(); ok {
		t.Fatalf("LastSource should not be set when empty")
	}
}

func TestUnparseableContentFallsBack(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRemote{content: `{not json`}
	fs := newFakeStore()
	fs.content["app-config"] = `{"a": 2}`

	r := newTestResolver(t,
		newTestNetworkSource(t, fr, 1, nil),
		mustDurableSource(t, fs, 2),
	)
	defer r.Destroy()

	v, err := r.Get(ctx, "a")
	if err != nil || v != float64(2) {
		t.Fatalf("Get = %v, %v; want durable fallback", v, err)
	}
	if name, _ := r.LastSource(); name != "database" {
		t.Fatalf("LastSource = %q, want database", name)
	}
}

// ==============================
// Reload, single-flight, lifecycle
// ==============================

func TestReloadReplacesProjectionEntirely(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.content["app-config"] = `{"a": 1, "b": 2}`

	r := newTestResolver(t, mustDurableSource(t, fs, 1))
	defer r.Destroy()

	if _, err := r.Get(ctx, "a"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	fs.mu.Lock()
	fs.content["app-config"] = `{"c": 3}`
	fs.mu.Unlock()
	r.Reload(ctx)

	all, err := r.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if _, stale := all["a"]; stale {
		t.Fatalf("stale key survived reload: %v", all)
	}
	if all["c"] != float64(3) {
		t.Fatalf("All = %v, want only c=3", all)
	}
}

func TestReloadAfterFailureClearsState(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.content["app-config"] = `{"a": 1}`

	r := newTestResolver(t, mustDurableSource(t, fs, 1))
	defer r.Destroy()

	if _, err := r.Get(ctx, "a"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	fs.mu.Lock()
	fs.loadErr = errors.New("gone")
	fs.mu.Unlock()
	r.Reload(ctx)

	if _, err := r.Get(ctx, "a"); !errors.Is(err, ErrNoConfiguration) {
		t.Fatalf("Get after failed reload = %v, want ErrNoConfiguration", err)
	}
}

// TestConcurrentFirstLoadSingleFlight checks that N concurrent first reads
// trigger exactly one source walk.
func TestConcurrentFirstLoadSingleFlight(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRemote{content: `{"a": 1}`, delay: 20 * time.Millisecond}

	r := newTestResolver(t, newTestNetworkSource(t, fr, 1, nil))
	defer r.Destroy()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Get(ctx, "a")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := fr.callCount(); got != 1 {
		t.Fatalf("remote calls = %d, want 1 (single flight)", got)
	}
}

func TestDestroyIsIdempotentAndTerminal(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.content["app-config"] = `{"a": 1}`

	r := newTestResolver(t, mustDurableSource(t, fs, 1))
	if _, err := r.Get(ctx, "a"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	r.Destroy()
	r.Destroy() // second call is a no-op

	if _, err := r.Get(ctx, "a"); !errors.Is(err, ErrResolverDestroyed) {
		t.Fatalf("Get after Destroy = %v, want ErrResolverDestroyed", err)
	}
}

// ==============================
// Construction
// ==============================

func TestNewValidatesOptions(t *testing.T) {
	fs := newFakeStore()
	src := mustDurableSource(t, fs, 1)
	jsonParser := parser.JSON[map[string]any]{}
	identity := func(m map[string]any) map[string]any { return m }

	if _, err := New[map[string]any](Options[map[string]any]{Parser: jsonParser, Project: identity}); err == nil {
		t.Fatalf("expected error for missing sources")
	}
	if _, err := New[map[string]any](Options[map[string]any]{Sources: []Source{src}, Project: identity}); err == nil {
		t.Fatalf("expected error for missing parser")
	}
	if _, err := New[map[string]any](Options[map[string]any]{Sources: []Source{src}, Parser: jsonParser}); err == nil {
		t.Fatalf("expected error for missing projector")
	}

	dup := mustDurableSource(t, fs, 1)
	_, err := New[map[string]any](Options[map[string]any]{
		Sources: []Source{src, dup},
		Parser:  jsonParser,
		Project: identity,
	})
	if err == nil {
		t.Fatalf("expected error for duplicate priorities")
	}
}

func TestSourcesTriedInPriorityOrderRegardlessOfSlice(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRemote{content: `{"a": "net"}`}
	fs := newFakeStore()
	fs.content["app-config"] = `{"a": "db"}`

	// durable listed first but has the higher priority number
	r := newTestResolver(t,
		mustDurableSource(t, fs, 5),
		newTestNetworkSource(t, fr, 1, nil),
	)
	defer r.Destroy()

	v, err := r.Get(ctx, "a")
	if err != nil || v != "net" {
		t.Fatalf("Get = %v, %v; want network value", v, err)
	}
}
