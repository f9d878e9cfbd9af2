package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/models"
)

type bookRepo struct{ access }

func (r bookRepo) Create(_ context.Context, b *models.Book) error {
	return r.with(func(st *state, now time.Time) error {
		b.ID = uuid.New()
		b.CreatedAt = now
		b.UpdatedAt = now
		st.books.put(b.ID, *b)
		return nil
	})
}

func (r bookRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Book, error) {
	var out *models.Book
	err := r.with(func(st *state, _ time.Time) error {
		if b, ok := st.books.get(id); ok {
			out = &b
		}
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: a transaction already holds the store.
func (r bookRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return r.GetByID(ctx, id)
}

func (r bookRepo) GetListing(_ context.Context, id uuid.UUID) (*models.BookListing, error) {
	var out *models.BookListing
	err := r.with(func(st *state, _ time.Time) error {
		b, ok := st.books.get(id)
		if !ok {
			return nil
		}
		out = ptr(listing(st, b))
		return nil
	})
	return out, err
}

func (r bookRepo) List(_ context.Context, f models.BookFilter) ([]models.BookListing, error) {
	out := make([]models.BookListing, 0)
	err := r.with(func(st *state, _ time.Time) error {
		q := strings.ToLower(strings.TrimSpace(f.Query))
		for _, b := range st.books.descending() {
			if q != "" && !strings.Contains(strings.ToLower(b.Title), q) &&
				!strings.Contains(strings.ToLower(b.Author), q) {
				continue
			}
			if f.Genre != "" && b.Genre != f.Genre {
				continue
			}
			if f.Status != "" && b.Status != f.Status {
				continue
			}
			if f.OwnerID != uuid.Nil && b.OwnerID != f.OwnerID {
				continue
			}
			out = append(out, listing(st, b))
		}
		return nil
	})
	return out, err
}

func listing(st *state, b models.Book) models.BookListing {
	owner, _ := st.users.get(b.OwnerID)
	return models.BookListing{
		Book:              b,
		OwnerName:         owner.Name,
		OwnerCity:         owner.City,
		OwnerNeighborhood: owner.Neighborhood,
		OwnerAvatar:       owner.AvatarURL,
		OwnerBio:          owner.Bio,
		OwnerRating:       owner.Rating,
		OwnerBooksShared:  owner.BooksShared,
		OwnerLat:          owner.Lat,
		OwnerLng:          owner.Lng,
	}
}

func (r bookRepo) Update(_ context.Context, id uuid.UUID, p models.BookPatch) (*models.Book, error) {
	var out *models.Book
	err := r.with(func(st *state, now time.Time) error {
		b, ok := st.books.get(id)
		if !ok {
			return nil
		}
		if p.Title != nil {
			b.Title = *p.Title
		}
		if p.Author != nil {
			b.Author = *p.Author
		}
		if p.Description != nil {
			b.Description = *p.Description
		}
		if p.Genre != nil {
			b.Genre = *p.Genre
		}
		if p.Condition != nil {
			b.Condition = *p.Condition
		}
		if p.Language != nil {
			b.Language = *p.Language
		}
		if p.CoverURL != nil {
			b.CoverURL = *p.CoverURL
		}
		if p.MaxBorrowDays != nil {
			b.MaxBorrowDays = *p.MaxBorrowDays
		}
		if p.Status != nil {
			b.Status = *p.Status
		}
		b.UpdatedAt = now
		st.books.put(id, b)
		out = &b
		return nil
	})
	return out, err
}

func (r bookRepo) SetStatus(_ context.Context, id uuid.UUID, status models.BookStatus) error {
	return r.with(func(st *state, now time.Time) error {
		b, ok := st.books.get(id)
		if !ok {
			return nil
		}
		b.Status = status
		b.UpdatedAt = now
		st.books.put(id, b)
		return nil
	})
}

// Delete mirrors the schema's foreign keys: requests on the book and their
// reviews go with it, messages keep their text but lose the references.
func (r bookRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.with(func(st *state, _ time.Time) error {
		if _, ok := st.books.get(id); !ok {
			return nil
		}
		dropped := make(map[uuid.UUID]bool)
		for _, req := range st.requests.ascending() {
			if req.BookID == id {
				dropped[req.ID] = true
				st.requests.remove(req.ID)
			}
		}
		for _, rv := range st.reviews.ascending() {
			if dropped[rv.BorrowRequestID] {
				st.reviews.remove(rv.ID)
			}
		}
		for _, m := range st.messages.ascending() {
			changed := false
			if m.BookID != nil && *m.BookID == id {
				m.BookID = nil
				changed = true
			}
			if m.BorrowRequestID != nil && dropped[*m.BorrowRequestID] {
				m.BorrowRequestID = nil
				changed = true
			}
			if changed {
				st.messages.put(m.ID, m)
			}
		}
		st.books.remove(id)
		return nil
	})
}
