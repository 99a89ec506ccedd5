package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Store is a user-scoped key/value string store with expiry. It backs the
// wizard snapshot and the studio-to-wizard mailbox.
type Store interface {
	GetValue(key string) (string, bool, error)
	SetValue(key, value string, ttl time.Duration) error
	DeleteValue(key string) error
}

// StudioResult is an edited photo handed from the Photo Studio back to the
// wizard step that opened it.
type StudioResult struct {
	PhotoIndex int    `json:"photoIndex"`
	ImageURL   string `json:"imageUrl"`
	// OriginalURL is the photo the studio started from. The wizard drops the
	// result if its slot no longer holds this photo.
	OriginalURL string `json:"originalUrl,omitempty"`
}

const (
	mailboxKeyPrefix = "vintifi_studio_result:"
	mailboxTTL       = 24 * time.Hour
)

// Mailbox is a one-shot queue per user: Take returns every posted result
// and empties the queue.
type Mailbox struct {
	store Store
	mu    sync.Mutex
}

// NewMailbox creates a mailbox over store.
func NewMailbox(store Store) *Mailbox {
	return &Mailbox{store: store}
}

func mailboxKey(userID string) string {
	return mailboxKeyPrefix + userID
}

// Post appends r to the user's queue.
func (m *Mailbox) Post(userID string, r StudioResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue, err := m.read(userID)
	if err != nil {
		return err
	}
	queue = append(queue, r)
	data, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("failed to marshal mailbox: %w", err)
	}
	if err := m.store.SetValue(mailboxKey(userID), string(data), mailboxTTL); err != nil {
		return fmt.Errorf("failed to write mailbox: %w", err)
	}
	return nil
}

// Take returns and removes every queued result for the user.
func (m *Mailbox) Take(userID string) ([]StudioResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue, err := m.read(userID)
	if err != nil || len(queue) == 0 {
		return nil, err
	}
	if err := m.store.DeleteValue(mailboxKey(userID)); err != nil {
		return nil, fmt.Errorf("failed to clear mailbox: %w", err)
	}
	return queue, nil
}

func (m *Mailbox) read(userID string) ([]StudioResult, error) {
	raw, ok, err := m.store.GetValue(mailboxKey(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read mailbox: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var queue []StudioResult
	if err := json.Unmarshal([]byte(raw), &queue); err != nil {
		// A corrupt queue is discarded rather than blocking future posts
		return nil, nil
	}
	return queue, nil
}

// MemoryStore is an in-process Store used in tests and when no database is
// configured.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]memoryValue
	now    func() time.Time
}

type memoryValue struct {
	value   string
	expires time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]memoryValue), now: time.Now}
}

func (s *MemoryStore) GetValue(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", false, nil
	}
	if !v.expires.IsZero() && s.now().After(v.expires) {
		delete(s.values, key)
		return "", false, nil
	}
	return v.value, true, nil
}

func (s *MemoryStore) SetValue(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := memoryValue{value: value}
	if ttl > 0 {
		v.expires = s.now().Add(ttl)
	}
	s.values[key] = v
	return nil
}

func (s *MemoryStore) DeleteValue(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
