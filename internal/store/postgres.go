package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ DesiredState = (*Postgres)(nil)
	_ Catalog      = (*Postgres)(nil)
	_ Suppressions = (*Postgres)(nil)
)

// Postgres is the durable store. Schema lives in internal/db/migrations.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const selectItems = `
SELECT i.id, i.name, i.target, i.desired, i.running, i.notify_next_term, i.created_at,
       COALESCE(array_agg(r.address ORDER BY r.address) FILTER (WHERE r.address IS NOT NULL AND NOT r.deactivated), '{}')
FROM watched_items i
LEFT JOIN recipients r ON r.item_id = i.id
`

const groupItems = `
GROUP BY i.id
ORDER BY i.created_at, i.id`

func (p *Postgres) ListItems(ctx context.Context) ([]WatchedItem, error) {
	return p.queryItems(ctx, selectItems+groupItems)
}

func (p *Postgres) ListDesiredActiveNotRunning(ctx context.Context) ([]WatchedItem, error) {
	return p.queryItems(ctx, selectItems+`WHERE i.desired AND NOT i.running`+groupItems)
}

func (p *Postgres) ListDesiredInactiveButRunning(ctx context.Context) ([]WatchedItem, error) {
	return p.queryItems(ctx, selectItems+`WHERE NOT i.desired AND i.running`+groupItems)
}

func (p *Postgres) ListAlreadyRunning(ctx context.Context) ([]WatchedItem, error) {
	return p.queryItems(ctx, selectItems+`WHERE i.running`+groupItems)
}

func (p *Postgres) queryItems(ctx context.Context, sql string, args ...any) ([]WatchedItem, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []WatchedItem
	for rows.Next() {
		var it WatchedItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Target, &it.Desired, &it.Running, &it.NotifyNextTerm, &it.CreatedAt, &it.Recipients); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkRunning(ctx context.Context, id string) error {
	return p.setRunning(ctx, id, true)
}

func (p *Postgres) MarkNotRunning(ctx context.Context, id string) error {
	return p.setRunning(ctx, id, false)
}

func (p *Postgres) setRunning(ctx context.Context, id string, running bool) error {
	tag, err := p.pool.Exec(ctx, `UPDATE watched_items SET running=$2 WHERE id=$1`, id, running)
	if err != nil {
		return fmt.Errorf("update running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateItem(ctx context.Context, req NewItem) (WatchedItem, error) {
	emails := uniqueEmails(req.Emails)
	if len(emails) == 0 {
		return WatchedItem{}, ErrNoEmails
	}

	it := WatchedItem{
		ID:             uuid.New().String(),
		Name:           req.Course.Name,
		Target:         req.Target,
		Desired:        true,
		NotifyNextTerm: req.NotifyNextTerm,
		CreatedAt:      time.Now().UTC(),
	}

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO watched_items (id, name, crn, semester, year, target, notify_next_term, desired, running, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, FALSE, $8)`,
			it.ID, it.Name, req.Course.CRN, string(req.Course.Semester), req.Course.Year, it.Target, it.NotifyNextTerm, it.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}

		for _, addr := range emails {
			code, err := codeFor(ctx, tx, addr)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
INSERT INTO recipients (item_id, address, deactivation_code) VALUES ($1, $2, $3)
ON CONFLICT (item_id, address) DO NOTHING`, it.ID, addr, code); err != nil {
				return fmt.Errorf("insert recipient: %w", err)
			}
			it.Recipients = append(it.Recipients, addr)
		}
		return nil
	})
	if err != nil {
		return WatchedItem{}, err
	}
	return it, nil
}

// codeFor reuses the code already issued to addr so one code unsubscribes
// the address everywhere.
func codeFor(ctx context.Context, tx pgx.Tx, addr string) (string, error) {
	var code string
	err := tx.QueryRow(ctx, `SELECT deactivation_code FROM recipients WHERE address=$1 LIMIT 1`, addr).Scan(&code)
	switch {
	case err == nil:
		return code, nil
	case errors.Is(err, pgx.ErrNoRows):
		return NewDeactivationCode()
	default:
		return "", fmt.Errorf("lookup deactivation code: %w", err)
	}
}

func (p *Postgres) OnboardRecipientsIfNew(ctx context.Context, item WatchedItem) ([]Recipient, error) {
	var fresh []Recipient
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
SELECT r.address, r.deactivation_code
FROM recipients r
WHERE r.item_id = $1
  AND NOT r.welcomed
  AND NOT r.deactivated
  AND NOT EXISTS (SELECT 1 FROM recipients o WHERE o.address = r.address AND o.welcomed)
ORDER BY r.address`, item.ID)
		if err != nil {
			return fmt.Errorf("query new recipients: %w", err)
		}
		fresh, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Recipient, error) {
			var r Recipient
			err := row.Scan(&r.Address, &r.DeactivationCode)
			return r, err
		})
		if err != nil {
			return fmt.Errorf("scan recipients: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE recipients SET welcomed=TRUE WHERE item_id=$1 AND NOT welcomed`, item.ID); err != nil {
			return fmt.Errorf("mark welcomed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

func (p *Postgres) Deactivate(ctx context.Context, code string) (int, error) {
	var stopped int
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var matched bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM recipients WHERE deactivation_code=$1)`, code).Scan(&matched); err != nil {
			return fmt.Errorf("lookup code: %w", err)
		}
		if !matched {
			return ErrNotFound
		}

		if _, err := tx.Exec(ctx, `UPDATE recipients SET deactivated=TRUE WHERE deactivation_code=$1`, code); err != nil {
			return fmt.Errorf("deactivate recipients: %w", err)
		}

		tag, err := tx.Exec(ctx, `
UPDATE watched_items i SET desired=FALSE
WHERE i.desired
  AND NOT EXISTS (SELECT 1 FROM recipients r WHERE r.item_id = i.id AND NOT r.deactivated)`)
		if err != nil {
			return fmt.Errorf("retire items: %w", err)
		}
		stopped = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stopped, nil
}

func (p *Postgres) ActiveAddresses(ctx context.Context, addrs []string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT address FROM recipients
WHERE address = ANY($1) AND NOT deactivated
ORDER BY address`, addrs)
	if err != nil {
		return nil, fmt.Errorf("query active addresses: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan addresses: %w", err)
	}
	return out, nil
}
