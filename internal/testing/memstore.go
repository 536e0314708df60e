package testing

import (
	"context"
	"sort"
	"sync"
	"time"

	"messagely/internal/storage"
)

type memUser struct {
	storage.User
	hash string
}

// MemStore is an in-memory stand-in for storage.Store enforcing the same unique and foreign key rules
type MemStore struct {
	mu       sync.Mutex
	now      func() time.Time
	users    map[string]*memUser
	messages map[int64]*storage.Message
	nextID   int64
	failures map[string]error
}

// NewMemStore returns an empty MemStore
func NewMemStore() *MemStore {
	return &MemStore{
		now:      time.Now,
		users:    make(map[string]*memUser),
		messages: make(map[int64]*storage.Message),
		failures: make(map[string]error),
	}
}

// SetClock replaces the clock used for join, login, sent and read timestamps
func (s *MemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Fail makes every following call of method return err, a nil err clears the failure
func (s *MemStore) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// MessageCount returns the number of stored messages
func (s *MemStore) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *MemStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures["Ping"]
}

func (s *MemStore) CreateUser(_ context.Context, u storage.NewUser) (storage.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["CreateUser"]; err != nil {
		return storage.UserSummary{}, err
	}

	if _, ok := s.users[u.Username]; ok {
		return storage.UserSummary{}, &storage.IntegrityError{Kind: storage.UniqueViolation, Constraint: "users_pkey"}
	}

	now := s.now()
	summary := storage.UserSummary{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
	}
	s.users[u.Username] = &memUser{
		User: storage.User{UserSummary: summary, JoinAt: now, LastLoginAt: now},
		hash: u.PasswordHash,
	}

	return summary, nil
}

func (s *MemStore) PasswordHash(_ context.Context, username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["PasswordHash"]; err != nil {
		return "", err
	}

	u, ok := s.users[username]
	if !ok {
		return "", storage.ErrNotFound
	}
	return u.hash, nil
}

func (s *MemStore) TouchLastLogin(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["TouchLastLogin"]; err != nil {
		return err
	}

	u, ok := s.users[username]
	if !ok {
		return storage.ErrNotFound
	}
	u.LastLoginAt = s.now()
	return nil
}

func (s *MemStore) User(_ context.Context, username string) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["User"]; err != nil {
		return storage.User{}, err
	}

	u, ok := s.users[username]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u.User, nil
}

func (s *MemStore) Users(_ context.Context) ([]storage.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["Users"]; err != nil {
		return nil, err
	}

	users := make([]storage.UserSummary, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.UserSummary)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemStore) CreateMessage(_ context.Context, from, to, body string) (storage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["CreateMessage"]; err != nil {
		return storage.Message{}, err
	}

	if _, ok := s.users[from]; !ok {
		return storage.Message{}, &storage.IntegrityError{Kind: storage.ForeignKeyViolation, Constraint: "messages_from_username_fkey"}
	}
	if _, ok := s.users[to]; !ok {
		return storage.Message{}, &storage.IntegrityError{Kind: storage.ForeignKeyViolation, Constraint: "messages_to_username_fkey"}
	}

	s.nextID++
	m := storage.Message{
		ID:           s.nextID,
		FromUsername: from,
		ToUsername:   to,
		Body:         body,
		SentAt:       s.now(),
	}
	s.messages[m.ID] = &m

	return m, nil
}

func (s *MemStore) Message(_ context.Context, id int64) (storage.MessageDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["Message"]; err != nil {
		return storage.MessageDetail{}, err
	}

	m, ok := s.messages[id]
	if !ok {
		return storage.MessageDetail{}, storage.ErrNotFound
	}

	return storage.MessageDetail{
		ID:       m.ID,
		Body:     m.Body,
		SentAt:   m.SentAt,
		ReadAt:   copyTime(m.ReadAt),
		FromUser: s.users[m.FromUsername].UserSummary,
		ToUser:   s.users[m.ToUsername].UserSummary,
	}, nil
}

func (s *MemStore) MessagesFrom(_ context.Context, username string) ([]storage.Correspondence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["MessagesFrom"]; err != nil {
		return nil, err
	}

	messages := make([]storage.Correspondence, 0)
	for _, m := range s.sorted() {
		if m.FromUsername != username {
			continue
		}
		to := s.users[m.ToUsername].UserSummary
		messages = append(messages, storage.Correspondence{
			ID: m.ID, Body: m.Body, SentAt: m.SentAt, ReadAt: copyTime(m.ReadAt), ToUser: &to,
		})
	}
	return messages, nil
}

func (s *MemStore) MessagesTo(_ context.Context, username string) ([]storage.Correspondence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["MessagesTo"]; err != nil {
		return nil, err
	}

	messages := make([]storage.Correspondence, 0)
	for _, m := range s.sorted() {
		if m.ToUsername != username {
			continue
		}
		from := s.users[m.FromUsername].UserSummary
		messages = append(messages, storage.Correspondence{
			ID: m.ID, Body: m.Body, SentAt: m.SentAt, ReadAt: copyTime(m.ReadAt), FromUser: &from,
		})
	}
	return messages, nil
}

func (s *MemStore) MarkRead(_ context.Context, id int64) (storage.ReadReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["MarkRead"]; err != nil {
		return storage.ReadReceipt{}, err
	}

	m, ok := s.messages[id]
	if !ok {
		return storage.ReadReceipt{}, storage.ErrNotFound
	}
	if m.ReadAt == nil {
		now := s.now()
		m.ReadAt = &now
	}
	return storage.ReadReceipt{ID: m.ID, ReadAt: *m.ReadAt}, nil
}

// sorted returns messages ordered by id, callers hold s.mu
func (s *MemStore) sorted() []*storage.Message {
	messages := make([]*storage.Message, 0, len(s.messages))
	for _, m := range s.messages {
		messages = append(messages, m)
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })
	return messages
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
