// Package store holds the desired state: which courses should be watched,
// who to notify, and whether a poller is currently running for each.
package store

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/marcin-skalski/seatwatch/internal/course"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go DesiredState

var (
	ErrNotFound = errors.New("not found")
	ErrNoEmails = errors.New("at least one email address required")
)

// WatchedItem is one course under (or awaiting) observation.
type WatchedItem struct {
	ID         string
	Name       string
	Target     string
	Recipients []string
	// Desired reports whether the item should be polled.
	Desired bool
	// Running mirrors whether a poller exists; only the daemon writes it.
	Running bool
	// NotifyNextTerm records the signup's wish to hear about the next term.
	NotifyNextTerm bool
	CreatedAt      time.Time
}

// Recipient is one address subscribed to an item.
type Recipient struct {
	Address          string
	DeactivationCode string
}

// NewItem is an intake request that has already been validated.
type NewItem struct {
	Course         course.Course
	Target         string
	Emails         []string
	NotifyNextTerm bool
}

// DesiredState is what the daemon needs from the store.
type DesiredState interface {
	ListDesiredActiveNotRunning(ctx context.Context) ([]WatchedItem, error)
	ListDesiredInactiveButRunning(ctx context.Context) ([]WatchedItem, error)
	ListAlreadyRunning(ctx context.Context) ([]WatchedItem, error)
	MarkRunning(ctx context.Context, id string) error
	MarkNotRunning(ctx context.Context, id string) error
	// OnboardRecipientsIfNew marks the item's recipients welcomed and returns
	// the ones never welcomed before under any item.
	OnboardRecipientsIfNew(ctx context.Context, item WatchedItem) ([]Recipient, error)
}

// Catalog is the intake side used by the web API.
type Catalog interface {
	CreateItem(ctx context.Context, req NewItem) (WatchedItem, error)
	ListItems(ctx context.Context) ([]WatchedItem, error)
	// Deactivate unsubscribes every address holding code and returns how many
	// items stopped being desired as a result.
	Deactivate(ctx context.Context, code string) (int, error)
}

// Suppressions reports which addresses are still allowed to receive mail.
type Suppressions interface {
	ActiveAddresses(ctx context.Context, addrs []string) ([]string, error)
}

const (
	codeLength   = 20
	codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewDeactivationCode returns a random alphanumeric code.
func NewDeactivationCode() (string, error) {
	b := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// uniqueEmails drops repeated addresses, keeping first-seen order.
func uniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, addr := range emails {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
