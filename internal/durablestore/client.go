package durablestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/auctionhub/auction-core/internal/domain"
	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

// Client is the typed facade over the durable store. Every method opens a
// short-lived connection via the Pool (LIFO reuse) and bounds its
// statement to the configured query timeout.
type Client struct {
	pool *Pool
}

func NewClient(pool *Pool) *Client { return &Client{pool: pool} }

func (c *Client) withConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.pool.QueryTimeout())
	defer cancel()

	conn, err := c.pool.Checkout(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Release(conn)

	if err := fn(ctx, conn); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperr.New(apperr.KindUpstreamTimeout, "durable store query timed out").WithCause(err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return apperr.New(apperr.KindDurableUnavailable, "durable store query failed").WithCause(err)
	}
	return nil
}

// GetSessionParams loads the immutable scoring and timing parameters for
// one session, the Session Parameter Cache's read-through source.
func (c *Client) GetSessionParams(ctx context.Context, sessionID string) (domain.Session, error) {
	var s domain.Session
	s.ID = sessionID
	err := c.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `
			SELECT product_id, reserve_price, inventory, alpha, beta, gamma,
			       start_time, end_time, is_active, final_price
			FROM sessions WHERE id = $1`, sessionID)
		return row.Scan(&s.ProductID, &s.ReservePrice, &s.Inventory, &s.Alpha, &s.Beta, &s.Gamma,
			&s.StartTime, &s.EndTime, &s.IsActive, &s.FinalPrice)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, apperr.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// EndedActiveSessions returns sessions with end_time <= now and is_active
// still true, the Session Monitor's finalization candidate query.
func (c *Client) EndedActiveSessions(ctx context.Context, now time.Time) ([]domain.Session, error) {
	var sessions []domain.Session
	err := c.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, product_id, reserve_price, inventory, alpha, beta, gamma,
			       start_time, end_time, is_active, final_price
			FROM sessions WHERE is_active = TRUE AND end_time <= $1`, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s domain.Session
			if err := rows.Scan(&s.ID, &s.ProductID, &s.ReservePrice, &s.Inventory, &s.Alpha, &s.Beta, &s.Gamma,
				&s.StartTime, &s.EndTime, &s.IsActive, &s.FinalPrice); err != nil {
				return err
			}
			sessions = append(sessions, s)
		}
		return rows.Err()
	})
	return sessions, err
}

// UpsertBids is the Batch Persister's write: one prepared
// INSERT ... ON CONFLICT executed per record inside a single transaction,
// so a batch commits or fails as a unit and repeated processing of the
// same records converges on the same rows.
func (c *Client) UpsertBids(ctx context.Context, records []domain.BidRecord) error {
	if len(records) == 0 {
		return nil
	}
	return c.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO bids (session_id, user_id, price, score, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (session_id, user_id)
			DO UPDATE SET price = EXCLUDED.price, score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.SessionID, r.UserID, r.Price, r.Score, r.UpdatedAt); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// UsersByIDs performs the read path's single bulk identity lookup.
func (c *Client) UsersByIDs(ctx context.Context, userIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	err := c.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT id, username FROM users WHERE id = ANY($1)`, pq.Array(userIDs))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id, username string
			if err := rows.Scan(&id, &username); err != nil {
				return err
			}
			result[id] = username
		}
		return rows.Err()
	})
	return result, err
}

// UserByID resolves a single principal by id from the users table.
// Authentication does not call it: Core.Authenticate builds the Principal
// from validated JWT claims on a Token Cache miss.
func (c *Client) UserByID(ctx context.Context, userID string) (domain.Principal, error) {
	var p domain.Principal
	p.ID = userID
	err := c.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT username, weight, is_admin FROM users WHERE id = $1`, userID)
		return row.Scan(&p.Username, &p.Weight, &p.IsAdmin)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Principal{}, apperr.ErrAuthFailed
	}
	if err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

// FinalizeSession writes the final-ranking rows and flips the session to
// inactive in one transaction, satisfying finalization idempotence: a
// second call with the same rankings is a harmless no-op overwrite.
func (c *Client) FinalizeSession(ctx context.Context, sessionID string, finalPrice float64, rankings []domain.FinalRanking) error {
	return c.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO rankings (session_id, user_id, rank, price, score, is_winner)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (session_id, user_id)
			DO UPDATE SET rank = EXCLUDED.rank, price = EXCLUDED.price, score = EXCLUDED.score, is_winner = EXCLUDED.is_winner`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rankings {
			if _, err := stmt.ExecContext(ctx, r.SessionID, r.UserID, r.Rank, r.Price, r.Score, r.IsWinner); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET is_active = FALSE, final_price = $2 WHERE id = $1`,
			sessionID, finalPrice); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// CreateSession inserts a new auction session. Session creation happens
// outside the bid pipeline, but some entry point must seed the durable
// row the rest of the pipeline reads through; exposed here for that seam.
// Nothing in this repository calls it, and the hot path never does.
func (c *Client) CreateSession(ctx context.Context, s domain.Session) error {
	return c.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO sessions (id, product_id, reserve_price, inventory, alpha, beta, gamma, start_time, end_time, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)`,
			s.ID, s.ProductID, s.ReservePrice, s.Inventory, s.Alpha, s.Beta, s.Gamma, s.StartTime, s.EndTime)
		return err
	})
}

func (c *Client) Close() error { return c.pool.Close() }
