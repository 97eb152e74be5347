package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRecipient struct {
	address     string
	code        string
	welcomed    bool
	deactivated bool
}

type memItem struct {
	item       WatchedItem
	recipients []*memRecipient
}

var (
	_ DesiredState = (*Memory)(nil)
	_ Catalog      = (*Memory)(nil)
	_ Suppressions = (*Memory)(nil)
)

// Memory is a process-local store. It backs tests and trial runs without a
// database; nothing survives a restart.
type Memory struct {
	mu    sync.Mutex
	items map[string]*memItem
	order []string
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]*memItem)}
}

func (m *Memory) CreateItem(_ context.Context, req NewItem) (WatchedItem, error) {
	emails := uniqueEmails(req.Emails)
	if len(emails) == 0 {
		return WatchedItem{}, ErrNoEmails
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	it := &memItem{item: WatchedItem{
		ID:             uuid.New().String(),
		Name:           req.Course.Name,
		Target:         req.Target,
		Desired:        true,
		NotifyNextTerm: req.NotifyNextTerm,
		CreatedAt:      time.Now().UTC(),
	}}
	for _, addr := range emails {
		code, err := m.codeFor(addr)
		if err != nil {
			return WatchedItem{}, fmt.Errorf("deactivation code: %w", err)
		}
		it.recipients = append(it.recipients, &memRecipient{address: addr, code: code})
	}

	m.items[it.item.ID] = it
	m.order = append(m.order, it.item.ID)
	return m.view(it), nil
}

// codeFor reuses the code already issued to addr, if any. Caller holds mu.
func (m *Memory) codeFor(addr string) (string, error) {
	for _, it := range m.items {
		for _, r := range it.recipients {
			if r.address == addr {
				return r.code, nil
			}
		}
	}
	return NewDeactivationCode()
}

func (m *Memory) ListItems(_ context.Context) ([]WatchedItem, error) {
	return m.filter(func(WatchedItem) bool { return true }), nil
}

func (m *Memory) ListDesiredActiveNotRunning(_ context.Context) ([]WatchedItem, error) {
	return m.filter(func(it WatchedItem) bool { return it.Desired && !it.Running }), nil
}

func (m *Memory) ListDesiredInactiveButRunning(_ context.Context) ([]WatchedItem, error) {
	return m.filter(func(it WatchedItem) bool { return !it.Desired && it.Running }), nil
}

func (m *Memory) ListAlreadyRunning(_ context.Context) ([]WatchedItem, error) {
	return m.filter(func(it WatchedItem) bool { return it.Running }), nil
}

func (m *Memory) MarkRunning(_ context.Context, id string) error {
	return m.setRunning(id, true)
}

func (m *Memory) MarkNotRunning(_ context.Context, id string) error {
	return m.setRunning(id, false)
}

// SetDesired flips whether an item should be watched.
func (m *Memory) SetDesired(_ context.Context, id string, desired bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	it.item.Desired = desired
	return nil
}

func (m *Memory) setRunning(id string, running bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	it.item.Running = running
	return nil
}

func (m *Memory) OnboardRecipientsIfNew(_ context.Context, item WatchedItem) ([]Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[item.ID]
	if !ok {
		return nil, ErrNotFound
	}

	var fresh []Recipient
	for _, r := range it.recipients {
		if r.welcomed {
			continue
		}
		if !r.deactivated && !m.welcomedAnywhere(r.address) {
			fresh = append(fresh, Recipient{Address: r.address, DeactivationCode: r.code})
		}
	}
	for _, r := range it.recipients {
		r.welcomed = true
	}
	return fresh, nil
}

func (m *Memory) welcomedAnywhere(addr string) bool {
	for _, it := range m.items {
		for _, r := range it.recipients {
			if r.address == addr && r.welcomed {
				return true
			}
		}
	}
	return false
}

func (m *Memory) Deactivate(_ context.Context, code string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for _, it := range m.items {
		for _, r := range it.recipients {
			if r.code == code {
				found = true
				r.deactivated = true
			}
		}
	}
	if !found {
		return 0, ErrNotFound
	}

	stopped := 0
	for _, it := range m.items {
		if !it.item.Desired {
			continue
		}
		if !slices.ContainsFunc(it.recipients, func(r *memRecipient) bool { return !r.deactivated }) {
			it.item.Desired = false
			stopped++
		}
	}
	return stopped, nil
}

func (m *Memory) ActiveAddresses(_ context.Context, addrs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make(map[string]bool)
	for _, it := range m.items {
		for _, r := range it.recipients {
			if !r.deactivated {
				active[r.address] = true
			}
		}
	}

	var out []string
	for _, a := range addrs {
		if active[a] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) filter(keep func(WatchedItem) bool) []WatchedItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []WatchedItem
	for _, id := range m.order {
		it := m.items[id]
		if keep(it.item) {
			out = append(out, m.view(it))
		}
	}
	return out
}

// view copies an item with its active recipients. Caller holds mu.
func (m *Memory) view(it *memItem) WatchedItem {
	v := it.item
	v.Recipients = nil
	for _, r := range it.recipients {
		if !r.deactivated {
			v.Recipients = append(v.Recipients, r.address)
		}
	}
	sort.Strings(v.Recipients)
	return v
}
