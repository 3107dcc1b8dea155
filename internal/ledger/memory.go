package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memoryStore is a Store held entirely in process memory. A single mutex
// covers every row, so transfers and redemptions are trivially atomic.
type memoryStore struct {
	mu       sync.RWMutex
	users    map[int64]*User
	codes    map[string]int64
	services map[ServiceKind]Service
}

// NewMemoryStore constructs an in-memory Store for tests and development.
func NewMemoryStore() Store {
	return &memoryStore{
		users:    make(map[int64]*User),
		codes:    make(map[string]int64),
		services: make(map[ServiceKind]Service),
	}
}

func (m *memoryStore) EnsureUser(_ context.Context, id int64, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		u = &User{ID: id, Approval: ApprovalPending}
		m.users[id] = u
	}
	if username = strings.TrimSpace(username); username != "" {
		u.Username = username
	}
	return *u, nil
}

func (m *memoryStore) User(_ context.Context, id int64) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

func (m *memoryStore) SetApproval(_ context.Context, id int64, status Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Approval = status
	return nil
}

func (m *memoryStore) RedeemDiscount(_ context.Context, id int64, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, ErrUserNotFound
	}
	if u.DiscountUsed {
		return 0, ErrDiscountUsed
	}
	value, ok := m.codes[code]
	if !ok {
		return 0, ErrCodeNotFound
	}
	u.Credit += value
	u.DiscountUsed = true
	return value, nil
}

func (m *memoryStore) Transfer(_ context.Context, from, to, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSelfTransfer
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sender, ok := m.users[from]
	if !ok {
		return ErrUserNotFound
	}
	receiver, ok := m.users[to]
	if !ok {
		return ErrUserNotFound
	}
	if sender.Credit < amount {
		return ErrInsufficientFunds
	}
	sender.Credit -= amount
	receiver.Credit += amount
	return nil
}

func (m *memoryStore) Credit(_ context.Context, id, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.Credit += amount
	return true, nil
}

func (m *memoryStore) UpsertService(_ context.Context, svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[svc.Kind] = svc
	return nil
}

func (m *memoryStore) Service(_ context.Context, kind ServiceKind) (Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[kind]
	if !ok {
		return Service{}, ErrServiceNotFound
	}
	return svc, nil
}

func (m *memoryStore) InsertCode(_ context.Context, code DiscountCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.codes[code.Code]; exists {
		return ErrDuplicateCode
	}
	m.codes[code.Code] = code.Value
	return nil
}

func (m *memoryStore) Code(_ context.Context, code string) (DiscountCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.codes[code]
	if !ok {
		return DiscountCode{}, ErrCodeNotFound
	}
	return DiscountCode{Code: code, Value: value}, nil
}

func (m *memoryStore) UserIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryStore) PendingUsers(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []User
	for _, u := range m.users {
		if u.Approval != ApprovalApproved {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
