package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
)

type userRepo struct{ access }

func (r userRepo) Create(_ context.Context, u *models.User) error {
	return r.with(func(st *state, now time.Time) error {
		for _, existing := range st.users.rows {
			if existing.Email == u.Email {
				return fmt.Errorf("insert user: %w", repository.ErrDuplicate)
			}
		}
		u.ID = uuid.New()
		u.Rating = models.DefaultRating
		u.RatingCount = 0
		u.CreatedAt = now
		st.users.put(u.ID, *u)
		return nil
	})
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	var out *models.User
	err := r.with(func(st *state, _ time.Time) error {
		if u, ok := st.users.get(id); ok {
			out = &u
		}
		return nil
	})
	return out, err
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.with(func(st *state, _ time.Time) error {
		for _, u := range st.users.rows {
			if u.Email == email {
				out = ptr(u)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r userRepo) Update(_ context.Context, id uuid.UUID, p models.UserPatch) (*models.User, error) {
	var out *models.User
	err := r.with(func(st *state, _ time.Time) error {
		u, ok := st.users.get(id)
		if !ok {
			return nil
		}
		if p.Name != nil {
			u.Name = *p.Name
		}
		if p.Bio != nil {
			u.Bio = *p.Bio
		}
		if p.AvatarURL != nil {
			u.AvatarURL = *p.AvatarURL
		}
		if p.City != nil {
			u.City = *p.City
		}
		if p.Neighborhood != nil {
			u.Neighborhood = *p.Neighborhood
		}
		if p.Lat != nil {
			u.Lat = *p.Lat
		}
		if p.Lng != nil {
			u.Lng = *p.Lng
		}
		st.users.put(id, u)
		out = &u
		return nil
	})
	return out, err
}

func (r userRepo) IncrementBooksShared(_ context.Context, id uuid.UUID) error {
	return r.mutate(id, func(u *models.User) { u.BooksShared++ })
}

func (r userRepo) DecrementBooksShared(_ context.Context, id uuid.UUID) error {
	return r.mutate(id, func(u *models.User) { u.BooksShared = max(u.BooksShared-1, 0) })
}

func (r userRepo) IncrementBooksBorrowed(_ context.Context, id uuid.UUID) error {
	return r.mutate(id, func(u *models.User) { u.BooksBorrowed++ })
}

func (r userRepo) ApplyRating(_ context.Context, id uuid.UUID, rating int) error {
	return r.mutate(id, func(u *models.User) {
		if u.RatingCount == 0 {
			u.Rating = float64(rating)
		} else {
			u.Rating = (u.Rating*float64(u.RatingCount) + float64(rating)) / float64(u.RatingCount+1)
		}
		u.RatingCount++
	})
}

// mutate is a no-op for unknown ids, like an UPDATE matching no rows.
func (r userRepo) mutate(id uuid.UUID, fn func(u *models.User)) error {
	return r.with(func(st *state, _ time.Time) error {
		u, ok := st.users.get(id)
		if !ok {
			return nil
		}
		fn(&u)
		st.users.put(id, u)
		return nil
	})
}
