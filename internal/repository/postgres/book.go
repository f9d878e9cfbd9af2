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

type BookStore struct {
	db   DBTX
	inTx bool
}

func NewBookStore(db DBTX) *BookStore {
	return &BookStore{db: db}
}

const bookColumns = `b.id, b.owner_id, b.title, b.author, b.isbn, b.cover_url, b.description,
	b.genre, b.language, b.condition, b.status, b.max_borrow_days, b.lat, b.lng, b.city,
	b.neighborhood, b.created_at, b.updated_at`

const listingColumns = bookColumns + `, u.name, u.city, u.neighborhood, u.avatar_url, u.bio,
	u.rating, u.books_shared, u.lat, u.lng`

func bookDest(b *models.Book) []any {
	return []any{
		&b.ID,
		&b.OwnerID,
		&b.Title,
		&b.Author,
		&b.ISBN,
		&b.CoverURL,
		&b.Description,
		&b.Genre,
		&b.Language,
		&b.Condition,
		&b.Status,
		&b.MaxBorrowDays,
		&b.Lat,
		&b.Lng,
		&b.City,
		&b.Neighborhood,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}

func scanBook(row pgx.Row) (*models.Book, error) {
	var b models.Book
	if err := row.Scan(bookDest(&b)...); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanListing(row pgx.Row) (*models.BookListing, error) {
	var l models.BookListing
	dest := append(bookDest(&l.Book),
		&l.OwnerName,
		&l.OwnerCity,
		&l.OwnerNeighborhood,
		&l.OwnerAvatar,
		&l.OwnerBio,
		&l.OwnerRating,
		&l.OwnerBooksShared,
		&l.OwnerLat,
		&l.OwnerLng,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *BookStore) Create(ctx context.Context, b *models.Book) error {
	query := `
		WITH b AS (
			INSERT INTO books (owner_id, title, author, isbn, cover_url, description, genre,
				language, condition, status, max_borrow_days, lat, lng, city, neighborhood)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING *
		)
		SELECT ` + bookColumns + ` FROM b`

	created, err := scanBook(s.db.QueryRow(ctx, query,
		b.OwnerID, b.Title, b.Author, b.ISBN, b.CoverURL, b.Description, b.Genre,
		b.Language, b.Condition, b.Status, b.MaxBorrowDays, b.Lat, b.Lng, b.City, b.Neighborhood,
	))
	if err != nil {
		return wrapWrite("insert book", err)
	}
	*b = *created
	return nil
}

func (s *BookStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return s.get(ctx, id, "")
}

func (s *BookStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return s.get(ctx, id, lockClause(s.inTx))
}

func (s *BookStore) get(ctx context.Context, id uuid.UUID, lock string) (*models.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books b WHERE b.id = $1` + lock

	b, err := scanBook(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (s *BookStore) GetListing(ctx context.Context, id uuid.UUID) (*models.BookListing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM books b JOIN users u ON b.owner_id = u.id
		WHERE b.id = $1`

	l, err := scanListing(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get book listing: %w", err)
	}
	return l, nil
}

// List filters with plain substring matching (strpos on lowercased text),
// so user input never acts as a LIKE pattern.
func (s *BookStore) List(ctx context.Context, filter models.BookFilter) ([]models.BookListing, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		p := arg(strings.ToLower(q))
		where = append(where, fmt.Sprintf("(strpos(lower(b.title), %s) > 0 OR strpos(lower(b.author), %s) > 0)", p, p))
	}
	if filter.Genre != "" {
		where = append(where, "b.genre = "+arg(filter.Genre))
	}
	if filter.Status != "" {
		where = append(where, "b.status = "+arg(filter.Status))
	}
	if filter.OwnerID != uuid.Nil {
		where = append(where, "b.owner_id = "+arg(filter.OwnerID))
	}

	query := `SELECT ` + listingColumns + ` FROM books b JOIN users u ON b.owner_id = u.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.created_at DESC, b.id"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]models.BookListing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

func (s *BookStore) Update(ctx context.Context, id uuid.UUID, patch models.BookPatch) (*models.Book, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Author != nil {
		add("author", *patch.Author)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Genre != nil {
		add("genre", *patch.Genre)
	}
	if patch.Condition != nil {
		add("condition", *patch.Condition)
	}
	if patch.Language != nil {
		add("language", *patch.Language)
	}
	if patch.CoverURL != nil {
		add("cover_url", *patch.CoverURL)
	}
	if patch.MaxBorrowDays != nil {
		add("max_borrow_days", *patch.MaxBorrowDays)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if len(sets) == 0 {
		return s.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(`
		WITH b AS (UPDATE books SET %s WHERE id = $%d RETURNING *)
		SELECT %s FROM b`, strings.Join(sets, ", "), len(args), bookColumns)

	b, err := scanBook(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update book: %w", err)
	}
	return b, nil
}

func (s *BookStore) SetStatus(ctx context.Context, id uuid.UUID, status models.BookStatus) error {
	query := `UPDATE books SET status = $2, updated_at = now() WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id, status); err != nil {
		return fmt.Errorf("set book status: %w", err)
	}
	return nil
}

// Delete removes the book together with every request and review that
// points at it.
func (s *BookStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}
