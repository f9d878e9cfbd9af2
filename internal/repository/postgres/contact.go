package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/models"
)

type ContactStore struct {
	db DBTX
}

func NewContactStore(db DBTX) *ContactStore {
	return &ContactStore{db: db}
}

// Ensure relies on UNIQUE (user_a, user_b) plus the canonical ordering of
// the pair: a second insert of the same edge, from either side, is a no-op.
func (s *ContactStore) Ensure(ctx context.Context, pair models.ContactPair) (bool, error) {
	query := `
		INSERT INTO contacts (user_a, user_b)
		VALUES ($1, $2)
		ON CONFLICT (user_a, user_b) DO NOTHING`

	tag, err := s.db.Exec(ctx, query, pair.A, pair.B)
	if err != nil {
		return false, fmt.Errorf("ensure contact: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *ContactStore) Exists(ctx context.Context, pair models.ContactPair) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM contacts WHERE user_a = $1 AND user_b = $2)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, pair.A, pair.B).Scan(&exists); err != nil {
		return false, fmt.Errorf("check contact: %w", err)
	}
	return exists, nil
}

// ListForUser reads one row per edge; userID may sit on either column.
func (s *ContactStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ContactView, error) {
	query := `
		SELECT u.id, u.name, u.city, u.neighborhood, u.avatar_url, u.rating,
		       u.books_shared, u.books_borrowed, c.created_at
		FROM contacts c
		JOIN users u ON u.id = CASE WHEN c.user_a = $1 THEN c.user_b ELSE c.user_a END
		WHERE c.user_a = $1 OR c.user_b = $1
		ORDER BY u.name ASC, u.id`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]models.ContactView, 0)
	for rows.Next() {
		var c models.ContactView
		if err := rows.Scan(
			&c.ContactID,
			&c.Name,
			&c.City,
			&c.Neighborhood,
			&c.AvatarURL,
			&c.Rating,
			&c.BooksShared,
			&c.BooksBorrowed,
			&c.ConnectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}
