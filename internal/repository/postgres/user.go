package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/bookshare/internal/models"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, name, email, password_hash, bio, avatar_url, city, neighborhood,
	lat, lng, books_shared, books_borrowed, rating, rating_count, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Bio,
		&u.AvatarURL,
		&u.City,
		&u.Neighborhood,
		&u.Lat,
		&u.Lng,
		&u.BooksShared,
		&u.BooksBorrowed,
		&u.Rating,
		&u.RatingCount,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user row. Postgres generates the UUID, the default
// rating and the timestamp.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, city, neighborhood, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	created, err := scanUser(s.db.QueryRow(ctx, query,
		u.Name, u.Email, u.PasswordHash, u.City, u.Neighborhood, u.Lat, u.Lng))
	if err != nil {
		return wrapWrite("insert user", err)
	}
	*u = *created
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail looks up a user by email. Used for login and for resolving
// invites to existing accounts.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(s.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Update builds the SET list from the non-nil patch fields. Column names
// come from this code, never from the request.
func (s *UserStore) Update(ctx context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Bio != nil {
		add("bio", *patch.Bio)
	}
	if patch.AvatarURL != nil {
		add("avatar_url", *patch.AvatarURL)
	}
	if patch.City != nil {
		add("city", *patch.City)
	}
	if patch.Neighborhood != nil {
		add("neighborhood", *patch.Neighborhood)
	}
	if patch.Lat != nil {
		add("lat", *patch.Lat)
	}
	if patch.Lng != nil {
		add("lng", *patch.Lng)
	}
	if len(sets) == 0 {
		return s.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	u, err := scanUser(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *UserStore) IncrementBooksShared(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "increment books_shared",
		`UPDATE users SET books_shared = books_shared + 1 WHERE id = $1`, id)
}

func (s *UserStore) DecrementBooksShared(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "decrement books_shared",
		`UPDATE users SET books_shared = GREATEST(books_shared - 1, 0) WHERE id = $1`, id)
}

func (s *UserStore) IncrementBooksBorrowed(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "increment books_borrowed",
		`UPDATE users SET books_borrowed = books_borrowed + 1 WHERE id = $1`, id)
}

// ApplyRating replaces the default rating on the first review and keeps a
// running mean afterwards.
func (s *UserStore) ApplyRating(ctx context.Context, id uuid.UUID, rating int) error {
	return s.exec(ctx, "apply rating", `
		UPDATE users
		SET rating = CASE WHEN rating_count = 0 THEN $2::double precision
		                  ELSE (rating * rating_count + $2) / (rating_count + 1) END,
		    rating_count = rating_count + 1
		WHERE id = $1`, id, rating)
}

func (s *UserStore) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
