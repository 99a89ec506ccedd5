package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrDisposed is returned when dispatching into a machine that was stopped.
	ErrDisposed = errors.New("session machine disposed")
	// ErrStale is returned when a step's token was superseded.
	ErrStale = errors.New("stale session token")
	// ErrRejected is returned when a step's guard refused the current state.
	ErrRejected = errors.New("session step rejected")
)

// Reducer is a pure transition function.
type Reducer[S, A any] func(S, A) S

// Token tags an in-flight async request. A completion carrying a token that
// is no longer the latest for its kind is dropped.
type Token struct {
	Kind string
	Gen  uint64
}

// Step is one atomic unit of work for the worker. The token and guard are
// checked, generations are bumped and the actions are reduced without any
// other step interleaving.
type Step[S, A any] struct {
	// Token drops the step when it is no longer the latest of its kind.
	Token *Token
	// Guard drops the step when it returns false for the current state.
	Guard func(S) bool
	// Supersede starts a new generation for each kind, so completions still
	// in flight for those kinds are dropped.
	Supersede []string
	// Begin opens a new generation; its token is returned by Apply.
	Begin   string
	Actions []A
}

type outcome struct {
	token Token
	err   error
}

// envelope is a unit of work for the worker goroutine.
type envelope[S, A any] struct {
	step Step[S, A]
	done chan struct{}
	// result reports the outcome of the step (nil if unused).
	result chan outcome
}

// Machine owns one state value and applies actions to it sequentially on a
// dedicated worker goroutine.
//
// Threading model:
//   - Actions are queued into inbox and reduced one at a time by the worker.
//   - State() may be called from any goroutine and returns a snapshot.
//   - After Stop, Dispatch returns ErrDisposed and nothing reaches the reducer.
type Machine[S, A any] struct {
	id     string
	reduce Reducer[S, A]

	mu    sync.RWMutex
	state S
	gens  map[string]uint64

	inbox  chan envelope[S, A]
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	disposedMu sync.RWMutex
	disposed   bool

	onChange func(S)
}

// NewMachine creates a machine with initial state. Call Start before
// dispatching.
func NewMachine[S, A any](id string, initial S, reduce Reducer[S, A]) *Machine[S, A] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine[S, A]{
		id:     id,
		reduce: reduce,
		state:  initial,
		gens:   make(map[string]uint64),
		inbox:  make(chan envelope[S, A], 16), // Buffered to avoid blocking callers
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the session identifier the machine was created with.
func (m *Machine[S, A]) ID() string {
	return m.id
}

// OnChange registers a hook called by the worker after every applied action.
// Must be set before Start.
func (m *Machine[S, A]) OnChange(fn func(S)) {
	m.onChange = fn
}

// Start launches the worker goroutine.
func (m *Machine[S, A]) Start() {
	m.wg.Add(1)
	go m.runWorker()
}

// State returns the current state.
func (m *Machine[S, A]) State() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Begin starts a new generation for kind, superseding earlier tokens.
func (m *Machine[S, A]) Begin(kind string) Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[kind]++
	return Token{Kind: kind, Gen: m.gens[kind]}
}

// Current reports whether tok is still the latest generation of its kind.
func (m *Machine[S, A]) Current(tok Token) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gens[tok.Kind] == tok.Gen
}

// Disposed reports whether Stop has been called.
func (m *Machine[S, A]) Disposed() bool {
	m.disposedMu.RLock()
	defer m.disposedMu.RUnlock()
	return m.disposed
}

func (m *Machine[S, A]) runWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			// Drain any remaining envelopes so waiters are released
			for {
				select {
				case env := <-m.inbox:
					m.release(env, outcome{err: ErrDisposed})
				default:
					return
				}
			}
		case env := <-m.inbox:
			m.process(env)
		}
	}
}

func (m *Machine[S, A]) release(env envelope[S, A], out outcome) {
	if env.result != nil {
		env.result <- out
	}
	if env.done != nil {
		close(env.done)
	}
}

func (m *Machine[S, A]) process(env envelope[S, A]) {
	out := outcome{err: ErrRejected}
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("sessionId", m.id).
				Interface("panic", r).
				Msg("recovered from panic in session worker")
		}
		m.release(env, out)
	}()

	step := env.step
	if step.Token != nil && !m.Current(*step.Token) {
		log.Debug().
			Str("sessionId", m.id).
			Str("kind", step.Token.Kind).
			Uint64("gen", step.Token.Gen).
			Msg("dropping stale completion")
		out.err = ErrStale
		return
	}
	if step.Guard != nil && !step.Guard(m.State()) {
		return
	}

	m.mu.Lock()
	for _, kind := range step.Supersede {
		m.gens[kind]++
	}
	if step.Begin != "" {
		m.gens[step.Begin]++
		out.token = Token{Kind: step.Begin, Gen: m.gens[step.Begin]}
	}
	m.mu.Unlock()

	next := m.apply(step.Actions)
	out.err = nil

	if m.onChange != nil {
		m.onChange(next)
	}
}

// apply runs the reducer without holding the lock; the worker is the only
// writer, so readers keep seeing the previous state until the swap.
func (m *Machine[S, A]) apply(actions []A) S {
	next := m.State()
	for _, a := range actions {
		next = m.reduce(next, a)
	}
	m.mu.Lock()
	m.state = next
	m.mu.Unlock()
	return next
}

func (m *Machine[S, A]) send(env envelope[S, A]) error {
	m.disposedMu.RLock()
	defer m.disposedMu.RUnlock()
	if m.disposed {
		m.release(env, outcome{err: ErrDisposed})
		return ErrDisposed
	}
	select {
	case m.inbox <- env:
		return nil
	case <-m.ctx.Done():
		m.release(env, outcome{err: ErrDisposed})
		return ErrDisposed
	}
}

// Dispatch queues a for the worker and returns immediately.
func (m *Machine[S, A]) Dispatch(a A) error {
	return m.send(envelope[S, A]{step: Step[S, A]{Actions: []A{a}}})
}

// DispatchSync queues a and waits until it has been reduced. It returns the
// state as of completion.
func (m *Machine[S, A]) DispatchSync(a A) (S, error) {
	env := envelope[S, A]{step: Step[S, A]{Actions: []A{a}}, done: make(chan struct{})}
	if err := m.send(env); err != nil {
		return m.State(), err
	}
	<-env.done
	return m.State(), nil
}

// Apply runs step on the worker and waits for it. It returns the token
// opened by step.Begin and the state as of completion. The error is
// ErrStale, ErrRejected or ErrDisposed when the step was dropped, in which
// case the state is unchanged.
func (m *Machine[S, A]) Apply(step Step[S, A]) (Token, S, error) {
	env := envelope[S, A]{step: step, result: make(chan outcome, 1)}
	if err := m.send(env); err != nil {
		return Token{}, m.State(), err
	}
	out := <-env.result
	return out.token, m.State(), out.err
}

// Complete delivers the result of an async request tagged with tok and
// waits for it. It reports false when the token was stale or the machine
// was disposed, in which case the state is unchanged.
func (m *Machine[S, A]) Complete(tok Token, a A) bool {
	_, _, err := m.Apply(Step[S, A]{Token: &tok, Actions: []A{a}})
	return err == nil
}

// TryBegin opens a new generation for kind and applies start, but only if
// guard accepts the current state. The check and the start happen in one
// worker step, so two callers racing for the same kind cannot both win.
func (m *Machine[S, A]) TryBegin(kind string, guard func(S) bool, start ...A) (Token, S, error) {
	return m.Apply(Step[S, A]{Guard: guard, Begin: kind, Actions: start})
}

// Supersede applies actions after invalidating every in-flight token of
// kinds.
func (m *Machine[S, A]) Supersede(kinds []string, actions ...A) (S, error) {
	_, st, err := m.Apply(Step[S, A]{Supersede: kinds, Actions: actions})
	return st, err
}

// Stop disposes the machine and waits for the worker to exit. Queued
// actions that have not been reduced yet are discarded.
func (m *Machine[S, A]) Stop() {
	m.disposedMu.Lock()
	m.disposed = true
	m.disposedMu.Unlock()
	m.cancel()
	m.wg.Wait()
}
