// Package social links users into an undirected contact graph, either when
// an invite is accepted or immediately when the invited email already
// belongs to a member.
package social

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
	"go.uber.org/zap"
)

// MaxInvitesPerBatch caps how many addresses one call considers. Extra
// addresses are ignored, not rejected.
const MaxInvitesPerBatch = 20

type Service struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store repository.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewToken returns 64 hex characters from two random v4 UUIDs.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NormalizeEmail lowercases and trims. It returns "" for anything without
// an "@".
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return ""
	}
	return email
}

// CreateInvites invites each address once per inviter. Addresses that
// already belong to a member are linked on the spot (status joined, no
// token); the rest get a pending invite with a fresh token. Blank,
// malformed, self and already-invited addresses are skipped silently. The
// whole batch commits or fails together.
func (s *Service) CreateInvites(ctx context.Context, inviterID uuid.UUID, emails []string) ([]models.Invite, error) {
	if len(emails) == 0 {
		return nil, apperr.InvalidArgument("no emails provided")
	}
	if len(emails) > MaxInvitesPerBatch {
		emails = emails[:MaxInvitesPerBatch]
	}

	created := make([]models.Invite, 0, len(emails))
	var linked int
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		inviter, err := r.Users.GetByID(ctx, inviterID)
		if err != nil {
			return err
		}
		if inviter == nil {
			return apperr.Unauthorized("user no longer exists")
		}

		seen := make(map[string]bool, len(emails))
		for _, raw := range emails {
			email := NormalizeEmail(raw)
			if email == "" || email == inviter.Email || seen[email] {
				continue
			}
			seen[email] = true

			exists, err := r.Invites.ExistsForEmail(ctx, inviter.ID, email)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			member, err := r.Users.GetByEmail(ctx, email)
			if err != nil {
				return err
			}

			inv := models.Invite{InviterID: inviter.ID, Email: email}
			if member != nil {
				inv.Status = models.InviteJoined
				inv.InvitedUserID = &member.ID
			} else {
				inv.Status = models.InvitePending
				inv.Token = NewToken()
			}
			if err := r.Invites.Create(ctx, &inv); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return apperr.Conflict("an invite to " + email + " was just created, try again")
				}
				return err
			}
			if member != nil {
				if _, err := r.Contacts.Ensure(ctx, models.CanonicalPair(inviter.ID, member.ID)); err != nil {
					return err
				}
				linked++
			}
			created = append(created, inv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invites created",
		zap.String("inviter_id", inviterID.String()),
		zap.Int("created", len(created)),
		zap.Int("linked", linked),
	)
	return created, nil
}

// Lookup previews an invite for a visitor who has not registered yet.
func (s *Service) Lookup(ctx context.Context, token string) (*models.InvitePreview, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.InvalidArgument("token required")
	}
	preview, err := s.store.Repos().Invites.GetPreview(ctx, token)
	if err != nil {
		return nil, err
	}
	if preview == nil {
		return nil, apperr.NotFound("invalid invite")
	}
	return preview, nil
}

type AcceptResult struct {
	Inviter models.UserSummary
	// Connected is false when the two users were already contacts.
	Connected bool
}

// Accept redeems a token for callerID. An invite can be redeemed once; a
// joined invite still can, since it was never redeemed. callerID may be
// uuid.Nil, in which case the token is still validated first so the
// visitor learns whether the link is good before being asked to sign in.
func (s *Service) Accept(ctx context.Context, callerID uuid.UUID, token string) (*AcceptResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.InvalidArgument("token required")
	}

	var res AcceptResult
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		inv, err := r.Invites.GetByTokenForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if inv == nil {
			return apperr.NotFound("invalid invite link")
		}
		if inv.Status == models.InviteAccepted {
			return apperr.Conflict("invite already used")
		}
		if callerID == uuid.Nil {
			return apperr.Unauthorized("you must be logged in to accept an invite")
		}
		if inv.InviterID == callerID {
			return apperr.InvalidArgument("you cannot accept your own invite")
		}

		if err := r.Invites.MarkAccepted(ctx, inv.ID, callerID, s.now()); err != nil {
			return err
		}
		created, err := r.Contacts.Ensure(ctx, models.CanonicalPair(inv.InviterID, callerID))
		if err != nil {
			return err
		}
		res.Connected = created

		inviter, err := r.Users.GetByID(ctx, inv.InviterID)
		if err != nil {
			return err
		}
		if inviter != nil {
			res.Inviter = inviter.Summary()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invite accepted",
		zap.String("user_id", callerID.String()),
		zap.String("inviter_id", res.Inviter.ID.String()),
		zap.Bool("new_contact", res.Connected),
	)
	return &res, nil
}

func (s *Service) ListInvites(ctx context.Context, inviterID uuid.UUID) ([]models.InviteView, error) {
	return s.store.Repos().Invites.ListByInviter(ctx, inviterID)
}

func (s *Service) ListContacts(ctx context.Context, userID uuid.UUID) ([]models.ContactView, error) {
	return s.store.Repos().Contacts.ListForUser(ctx, userID)
}

// IsContact reports whether a and b are linked. A user is not their own
// contact.
func (s *Service) IsContact(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if a == b || a == uuid.Nil || b == uuid.Nil {
		return false, nil
	}
	return s.store.Repos().Contacts.Exists(ctx, models.CanonicalPair(a, b))
}
