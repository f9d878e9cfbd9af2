package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
)

type inviteRepo struct{ access }

func (r inviteRepo) Create(_ context.Context, inv *models.Invite) error {
	return r.with(func(st *state, now time.Time) error {
		for _, other := range st.invites.rows {
			if other.InviterID == inv.InviterID && other.Email == inv.Email {
				return fmt.Errorf("insert invite: %w", repository.ErrDuplicate)
			}
			if inv.Token != "" && other.Token == inv.Token {
				return fmt.Errorf("insert invite: %w", repository.ErrDuplicate)
			}
		}
		inv.ID = uuid.New()
		inv.CreatedAt = now
		st.invites.put(inv.ID, *inv)
		return nil
	})
}

func (r inviteRepo) ExistsForEmail(_ context.Context, inviterID uuid.UUID, email string) (bool, error) {
	found := false
	err := r.with(func(st *state, _ time.Time) error {
		for _, inv := range st.invites.rows {
			if inv.InviterID == inviterID && inv.Email == email {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

// byToken never matches the empty token, which stands for NULL.
func byToken(st *state, token string) (models.Invite, bool) {
	if token == "" {
		return models.Invite{}, false
	}
	for _, inv := range st.invites.rows {
		if inv.Token == token {
			return inv, true
		}
	}
	return models.Invite{}, false
}

func (r inviteRepo) GetByToken(_ context.Context, token string) (*models.Invite, error) {
	var out *models.Invite
	err := r.with(func(st *state, _ time.Time) error {
		if inv, ok := byToken(st, token); ok {
			out = &inv
		}
		return nil
	})
	return out, err
}

func (r inviteRepo) GetByTokenForUpdate(ctx context.Context, token string) (*models.Invite, error) {
	return r.GetByToken(ctx, token)
}

func (r inviteRepo) GetPreview(_ context.Context, token string) (*models.InvitePreview, error) {
	var out *models.InvitePreview
	err := r.with(func(st *state, _ time.Time) error {
		inv, ok := byToken(st, token)
		if !ok {
			return nil
		}
		inviter, _ := st.users.get(inv.InviterID)
		out = &models.InvitePreview{
			Email:       inv.Email,
			Status:      inv.Status,
			InviterName: inviter.Name,
			InviterCity: inviter.City,
			BooksShared: inviter.BooksShared,
		}
		return nil
	})
	return out, err
}

func (r inviteRepo) MarkAccepted(_ context.Context, id, userID uuid.UUID, at time.Time) error {
	return r.with(func(st *state, _ time.Time) error {
		inv, ok := st.invites.get(id)
		if !ok {
			return fmt.Errorf("mark invite %s accepted: not found", id)
		}
		inv.Status = models.InviteAccepted
		inv.InvitedUserID = ptr(userID)
		inv.AcceptedAt = ptr(at)
		st.invites.put(id, inv)
		return nil
	})
}

func (r inviteRepo) ListByInviter(_ context.Context, inviterID uuid.UUID) ([]models.InviteView, error) {
	out := make([]models.InviteView, 0)
	err := r.with(func(st *state, _ time.Time) error {
		for _, inv := range st.invites.descending() {
			if inv.InviterID != inviterID {
				continue
			}
			v := models.InviteView{Invite: inv}
			if inv.InvitedUserID != nil {
				u, _ := st.users.get(*inv.InvitedUserID)
				v.InvitedName, v.InvitedAvatar, v.InvitedCity = u.Name, u.AvatarURL, u.City
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

type contactRepo struct{ access }

func (r contactRepo) Ensure(_ context.Context, pair models.ContactPair) (bool, error) {
	created := false
	err := r.with(func(st *state, now time.Time) error {
		if pair.A.String() >= pair.B.String() {
			return fmt.Errorf("insert contact: pair %s/%s is not canonical", pair.A, pair.B)
		}
		if _, ok := st.contacts.get(pair); ok {
			return nil
		}
		st.contacts.put(pair, models.Contact{ID: uuid.New(), UserA: pair.A, UserB: pair.B, CreatedAt: now})
		created = true
		return nil
	})
	return created, err
}

func (r contactRepo) Exists(_ context.Context, pair models.ContactPair) (bool, error) {
	found := false
	err := r.with(func(st *state, _ time.Time) error {
		_, found = st.contacts.get(pair)
		return nil
	})
	return found, err
}

func (r contactRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]models.ContactView, error) {
	out := make([]models.ContactView, 0)
	err := r.with(func(st *state, _ time.Time) error {
		for pair, c := range st.contacts.rows {
			if !pair.Includes(userID) {
				continue
			}
			u, _ := st.users.get(pair.Other(userID))
			out = append(out, models.ContactView{
				ContactID:     u.ID,
				Name:          u.Name,
				City:          u.City,
				Neighborhood:  u.Neighborhood,
				AvatarURL:     u.AvatarURL,
				Rating:        u.Rating,
				BooksShared:   u.BooksShared,
				BooksBorrowed: u.BooksBorrowed,
				ConnectedAt:   c.CreatedAt,
			})
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.ContactView) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ContactID.String(), b.ContactID.String())
	})
	return out, err
}

type reviewRepo struct{ access }

func (r reviewRepo) Create(_ context.Context, rv *models.Review) error {
	return r.with(func(st *state, now time.Time) error {
		for _, other := range st.reviews.rows {
			if other.ReviewerID == rv.ReviewerID && other.BorrowRequestID == rv.BorrowRequestID {
				return fmt.Errorf("insert review: %w", repository.ErrDuplicate)
			}
		}
		rv.ID = uuid.New()
		rv.CreatedAt = now
		st.reviews.put(rv.ID, *rv)
		return nil
	})
}

func (r reviewRepo) Exists(_ context.Context, reviewerID, borrowRequestID uuid.UUID) (bool, error) {
	found := false
	err := r.with(func(st *state, _ time.Time) error {
		for _, rv := range st.reviews.rows {
			if rv.ReviewerID == reviewerID && rv.BorrowRequestID == borrowRequestID {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r reviewRepo) ListForUser(_ context.Context, reviewedID uuid.UUID) ([]models.ReviewView, error) {
	out := make([]models.ReviewView, 0)
	err := r.with(func(st *state, _ time.Time) error {
		for _, rv := range st.reviews.descending() {
			if rv.ReviewedID != reviewedID {
				continue
			}
			reviewer, _ := st.users.get(rv.ReviewerID)
			v := models.ReviewView{Review: rv, ReviewerName: reviewer.Name, ReviewerAvatar: reviewer.AvatarURL}
			if req, ok := st.requests.get(rv.BorrowRequestID); ok {
				b, _ := st.books.get(req.BookID)
				v.BookTitle = b.Title
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}
