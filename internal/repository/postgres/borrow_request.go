package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
)

type BorrowRequestStore struct {
	db   DBTX
	inTx bool
}

func NewBorrowRequestStore(db DBTX) *BorrowRequestStore {
	return &BorrowRequestStore{db: db}
}

const requestColumns = `r.id, r.book_id, r.requester_id, r.owner_id, r.status, r.message,
	r.borrow_days, r.requested_at, r.responded_at, r.borrowed_at, r.due_date, r.returned_at`

const requestViewColumns = requestColumns + `, b.title, b.cover_url, rq.name, o.name`

const requestViewFrom = `
	FROM borrow_requests r
	JOIN books b ON r.book_id = b.id
	JOIN users rq ON r.requester_id = rq.id
	JOIN users o ON r.owner_id = o.id`

// due_date is a DATE column; pgx scans it as midnight UTC and models.DatePtr
// turns that back into a calendar date.
func scanRequestInto(row pgx.Row, r *models.BorrowRequest, extra ...any) error {
	var due *time.Time
	dest := []any{
		&r.ID,
		&r.BookID,
		&r.RequesterID,
		&r.OwnerID,
		&r.Status,
		&r.Message,
		&r.BorrowDays,
		&r.RequestedAt,
		&r.RespondedAt,
		&r.BorrowedAt,
		&due,
		&r.ReturnedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	r.DueDate = models.DatePtr(due)
	return nil
}

func scanRequest(row pgx.Row) (*models.BorrowRequest, error) {
	var r models.BorrowRequest
	if err := scanRequestInto(row, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRequestView(row pgx.Row) (*models.BorrowRequestView, error) {
	var v models.BorrowRequestView
	if err := scanRequestInto(row, &v.BorrowRequest,
		&v.BookTitle, &v.BookCover, &v.RequesterName, &v.OwnerName); err != nil {
		return nil, err
	}
	return &v, nil
}

func dueArg(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.Time()
}

func (s *BorrowRequestStore) Create(ctx context.Context, r *models.BorrowRequest) error {
	query := `
		WITH r AS (
			INSERT INTO borrow_requests (book_id, requester_id, owner_id, status, message, borrow_days, requested_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING *
		)
		SELECT ` + requestColumns + ` FROM r`

	created, err := scanRequest(s.db.QueryRow(ctx, query,
		r.BookID, r.RequesterID, r.OwnerID, r.Status, r.Message, r.BorrowDays, r.RequestedAt))
	if err != nil {
		return wrapWrite("insert borrow request", err)
	}
	*r = *created
	return nil
}

func (s *BorrowRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.BorrowRequest, error) {
	return s.get(ctx, id, "")
}

func (s *BorrowRequestStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.BorrowRequest, error) {
	return s.get(ctx, id, lockClause(s.inTx))
}

func (s *BorrowRequestStore) get(ctx context.Context, id uuid.UUID, lock string) (*models.BorrowRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM borrow_requests r WHERE r.id = $1` + lock

	r, err := scanRequest(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get borrow request: %w", err)
	}
	return r, nil
}

func (s *BorrowRequestStore) GetView(ctx context.Context, id uuid.UUID) (*models.BorrowRequestView, error) {
	query := `SELECT ` + requestViewColumns + requestViewFrom + ` WHERE r.id = $1`

	v, err := scanRequestView(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get borrow request view: %w", err)
	}
	return v, nil
}

func (s *BorrowRequestStore) Update(ctx context.Context, r *models.BorrowRequest) error {
	query := `
		UPDATE borrow_requests
		SET status = $2, responded_at = $3, borrowed_at = $4, due_date = $5, returned_at = $6
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query,
		r.ID, r.Status, r.RespondedAt, r.BorrowedAt, dueArg(r.DueDate), r.ReturnedAt)
	if err != nil {
		return fmt.Errorf("update borrow request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update borrow request %s: %w", r.ID, pgx.ErrNoRows)
	}
	return nil
}

func (s *BorrowRequestStore) HasPending(ctx context.Context, bookID, requesterID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM borrow_requests
			WHERE book_id = $1 AND requester_id = $2 AND status = 'pending'
		)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, bookID, requesterID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return exists, nil
}

func (s *BorrowRequestStore) HasActive(ctx context.Context, bookID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM borrow_requests
			WHERE book_id = $1 AND status IN ('approved', 'borrowed')
		)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, bookID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active request: %w", err)
	}
	return exists, nil
}

// RejectPending only ever touches rows that are still pending; approved,
// borrowed and closed requests keep their state.
func (s *BorrowRequestStore) RejectPending(ctx context.Context, bookID, exceptID uuid.UUID, at time.Time) (int64, error) {
	query := `
		UPDATE borrow_requests
		SET status = 'rejected', responded_at = $3
		WHERE book_id = $1 AND id <> $2 AND status = 'pending'`

	tag, err := s.db.Exec(ctx, query, bookID, exceptID, at)
	if err != nil {
		return 0, fmt.Errorf("reject pending requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *BorrowRequestStore) ListForBook(ctx context.Context, bookID uuid.UUID) ([]models.BorrowRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM borrow_requests r
		WHERE r.book_id = $1 ORDER BY r.requested_at ASC, r.id`

	rows, err := s.db.Query(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("list book requests: %w", err)
	}
	defer rows.Close()

	requests := make([]models.BorrowRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan borrow request: %w", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate borrow requests: %w", err)
	}
	return requests, nil
}

func (s *BorrowRequestStore) ListForUser(ctx context.Context, userID uuid.UUID, role repository.BorrowRequestRole) ([]models.BorrowRequestView, error) {
	column := "r.requester_id"
	if role == repository.RoleOwner {
		column = "r.owner_id"
	}
	query := `SELECT ` + requestViewColumns + requestViewFrom +
		` WHERE ` + column + ` = $1 ORDER BY r.requested_at DESC, r.id`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list borrow requests: %w", err)
	}
	defer rows.Close()

	views := make([]models.BorrowRequestView, 0)
	for rows.Next() {
		v, err := scanRequestView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan borrow request: %w", err)
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate borrow requests: %w", err)
	}
	return views, nil
}
