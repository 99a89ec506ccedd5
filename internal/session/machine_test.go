package session

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appendReducer records actions in order and can simulate panics/blocking
func appendReducer(block chan struct{}, started chan struct{}) Reducer[[]string, string] {
	return func(s []string, a string) []string {
		if a == "PANIC" {
			panic("simulated worker panic")
		}
		if a == "BLOCK" {
			close(started)
			<-block
		}
		out := make([]string, len(s), len(s)+1)
		copy(out, s)
		return append(out, a)
	}
}

func createTestMachine(t *testing.T) *Machine[[]string, string] {
	t.Helper()
	m := NewMachine("test", []string{}, appendReducer(nil, nil))
	m.Start()
	t.Cleanup(m.Stop)
	return m
}

func TestMachine_SequentialProcessing(t *testing.T) {
	m := createTestMachine(t)

	for _, a := range []string{"msg1", "msg2", "msg3"} {
		require.NoError(t, m.Dispatch(a))
	}

	// DispatchSync acts as a barrier for the queued actions
	state, err := m.DispatchSync("barrier")
	require.NoError(t, err)
	assert.Equal(t, []string{"msg1", "msg2", "msg3", "barrier"}, state)
}

func TestMachine_PanicRecovery(t *testing.T) {
	m := createTestMachine(t)

	_, err := m.DispatchSync("PANIC")
	require.NoError(t, err)

	state, err := m.DispatchSync("recovery")
	require.NoError(t, err)
	assert.Equal(t, []string{"recovery"}, state, "panicking action must not change state")
}

func TestMachine_DisposeGuard(t *testing.T) {
	m := NewMachine("test", []string{}, appendReducer(nil, nil))
	m.Start()
	_, err := m.DispatchSync("before")
	require.NoError(t, err)

	m.Stop()

	assert.ErrorIs(t, m.Dispatch("after"), ErrDisposed)
	_, err = m.DispatchSync("after")
	assert.ErrorIs(t, err, ErrDisposed)
	assert.False(t, m.Complete(m.Begin("late"), "after"))
	assert.Equal(t, []string{"before"}, m.State())
	assert.True(t, m.Disposed())
}

func TestMachine_StaleTokenDropped(t *testing.T) {
	m := createTestMachine(t)

	first := m.Begin("price")
	second := m.Begin("price")

	assert.False(t, m.Current(first))
	assert.True(t, m.Current(second))

	assert.False(t, m.Complete(first, "stale"))
	assert.True(t, m.Complete(second, "fresh"))
	assert.Equal(t, []string{"fresh"}, m.State())
}

func TestMachine_TokensAreIndependentPerKind(t *testing.T) {
	m := createTestMachine(t)

	price := m.Begin("price")
	_ = m.Begin("optimise")

	assert.True(t, m.Complete(price, "price-result"))
}

func TestMachine_OnChangeSeesEveryState(t *testing.T) {
	m := NewMachine("test", []string{}, appendReducer(nil, nil))
	var mu sync.Mutex
	var seen [][]string
	m.OnChange(func(s []string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})
	m.Start()
	defer m.Stop()

	_, _ = m.DispatchSync("a")
	_, _ = m.DispatchSync("b")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"a"}, {"a", "b"}}, seen)
}

func TestMachine_StateReadableWhileWorkerBusy(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	m := NewMachine("test", []string{"initial"}, appendReducer(block, started))
	m.Start()
	defer m.Stop()

	require.NoError(t, m.Dispatch("BLOCK"))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker did not start processing")
	}

	done := make(chan []string)
	go func() { done <- m.State() }()

	select {
	case s := <-done:
		assert.Equal(t, []string{"initial"}, s)
	case <-time.After(time.Second):
		t.Fatal("State() blocked while worker was busy")
	}
	close(block)
}

func TestMachine_SupersedeDropsInFlightCompletions(t *testing.T) {
	m := createTestMachine(t)

	price := m.Begin("price")
	optimise := m.Begin("optimise")
	save := m.Begin("save")

	state, err := m.Supersede([]string{"price", "optimise"}, "edit", "clear")
	require.NoError(t, err)
	assert.Equal(t, []string{"edit", "clear"}, state)

	assert.False(t, m.Complete(price, "old price"))
	assert.False(t, m.Complete(optimise, "old optimise"))
	assert.True(t, m.Complete(save, "saved"))
	assert.Equal(t, []string{"edit", "clear", "saved"}, m.State())
}

func TestMachine_TryBeginIsAtomic(t *testing.T) {
	m := createTestMachine(t)
	idle := func(s []string) bool { return !slices.Contains(s, "start") }

	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var won []Token
	rejected := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, _, err := m.TryBegin("pipeline", idle, "start")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won = append(won, tok)
				return
			}
			assert.ErrorIs(t, err, ErrRejected)
			rejected++
		}()
	}
	wg.Wait()

	require.Len(t, won, 1)
	assert.Equal(t, callers-1, rejected)
	assert.Equal(t, []string{"start"}, m.State())
	assert.True(t, m.Current(won[0]))
}

func TestMachine_ApplyReportsWhyStepWasDropped(t *testing.T) {
	m := NewMachine("test", []string{}, appendReducer(nil, nil))
	m.Start()

	stale := m.Begin("price")
	m.Begin("price")
	_, _, err := m.Apply(Step[[]string, string]{Token: &stale, Actions: []string{"late"}})
	assert.ErrorIs(t, err, ErrStale)

	_, _, err = m.Apply(Step[[]string, string]{
		Guard:   func(s []string) bool { return len(s) > 0 },
		Begin:   "import",
		Actions: []string{"never"},
	})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, uint64(0), m.gens["import"], "a rejected step opens no generation")

	m.Stop()
	_, _, err = m.TryBegin("import", nil, "after")
	assert.ErrorIs(t, err, ErrDisposed)
	assert.Empty(t, m.State())
}

type stopCounter struct {
	mu    sync.Mutex
	stops int
}

func (s *stopCounter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func TestRegistry_LazyCreateAndShutdown(t *testing.T) {
	created := 0
	r := NewRegistry("test", func(userID string) (*stopCounter, error) {
		created++
		return &stopCounter{}, nil
	})

	a1, err := r.Get("alice")
	require.NoError(t, err)
	a2, err := r.Get("alice")
	require.NoError(t, err)
	b, err := r.Get("bob")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, r.Len())

	r.Shutdown()
	assert.Equal(t, 1, a1.stops)
	assert.Equal(t, 1, b.stops)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry("test", func(userID string) (*stopCounter, error) {
		return &stopCounter{}, nil
	})
	s, _ := r.Get("alice")
	r.Remove("alice")
	assert.Equal(t, 1, s.stops)

	fresh, _ := r.Get("alice")
	assert.NotSame(t, s, fresh)
}

func TestRegistry_RemoveIdle(t *testing.T) {
	r := NewRegistry("test", func(userID string) (*stopCounter, error) {
		return &stopCounter{}, nil
	})
	now := time.Now()
	r.now = func() time.Time { return now }

	alice, _ := r.Get("alice")
	now = now.Add(20 * time.Minute)
	bob, _ := r.Get("bob")
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, r.RemoveIdle(30*time.Minute))
	assert.Equal(t, 1, alice.stops)
	assert.Equal(t, 0, bob.stops)
	assert.Equal(t, 1, r.Len())

	// Fetching again counts as use
	again, _ := r.Get("bob")
	assert.Same(t, bob, again)
	now = now.Add(29 * time.Minute)
	assert.Zero(t, r.RemoveIdle(30*time.Minute))
	assert.Equal(t, 1, r.Len())
}

func TestMailbox_OneShot(t *testing.T) {
	mb := NewMailbox(NewMemoryStore())

	require.NoError(t, mb.Post("alice", StudioResult{PhotoIndex: 0, ImageURL: "a.png"}))
	require.NoError(t, mb.Post("alice", StudioResult{PhotoIndex: 2, ImageURL: "c.png"}))
	require.NoError(t, mb.Post("bob", StudioResult{PhotoIndex: 1, ImageURL: "b.png"}))

	got, err := mb.Take("alice")
	require.NoError(t, err)
	assert.Equal(t, []StudioResult{
		{PhotoIndex: 0, ImageURL: "a.png"},
		{PhotoIndex: 2, ImageURL: "c.png"},
	}, got)

	again, err := mb.Take("alice")
	require.NoError(t, err)
	assert.Empty(t, again)

	bob, err := mb.Take("bob")
	require.NoError(t, err)
	assert.Len(t, bob, 1)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetValue("k", "v", time.Minute))
	v, ok, _ := s.GetValue("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, ok, _ = s.GetValue("k")
	assert.False(t, ok)
}
