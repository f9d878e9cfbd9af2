package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/bookshare/internal/models"
)

type InviteStore struct {
	db   DBTX
	inTx bool
}

func NewInviteStore(db DBTX) *InviteStore {
	return &InviteStore{db: db}
}

const inviteColumns = `i.id, i.inviter_id, i.email, i.token, i.status, i.invited_user_id,
	i.created_at, i.accepted_at`

// token is NULL for invites resolved to an existing account.
func scanInviteInto(row pgx.Row, inv *models.Invite, extra ...any) error {
	var token *string
	dest := []any{
		&inv.ID,
		&inv.InviterID,
		&inv.Email,
		&token,
		&inv.Status,
		&inv.InvitedUserID,
		&inv.CreatedAt,
		&inv.AcceptedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	if token != nil {
		inv.Token = *token
	}
	return nil
}

func nullableToken(token string) any {
	if token == "" {
		return nil
	}
	return token
}

func (s *InviteStore) Create(ctx context.Context, inv *models.Invite) error {
	query := `
		WITH i AS (
			INSERT INTO invites (inviter_id, email, token, status, invited_user_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)
		SELECT ` + inviteColumns + ` FROM i`

	var created models.Invite
	err := scanInviteInto(s.db.QueryRow(ctx, query,
		inv.InviterID, inv.Email, nullableToken(inv.Token), inv.Status, inv.InvitedUserID,
	), &created)
	if err != nil {
		return wrapWrite("insert invite", err)
	}
	*inv = created
	return nil
}

func (s *InviteStore) ExistsForEmail(ctx context.Context, inviterID uuid.UUID, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM invites WHERE inviter_id = $1 AND email = $2)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, inviterID, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check invite: %w", err)
	}
	return exists, nil
}

func (s *InviteStore) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	return s.getByToken(ctx, token, "")
}

func (s *InviteStore) GetByTokenForUpdate(ctx context.Context, token string) (*models.Invite, error) {
	return s.getByToken(ctx, token, lockClause(s.inTx))
}

func (s *InviteStore) getByToken(ctx context.Context, token, lock string) (*models.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites i WHERE i.token = $1` + lock

	var inv models.Invite
	if err := scanInviteInto(s.db.QueryRow(ctx, query, token), &inv); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return &inv, nil
}

func (s *InviteStore) GetPreview(ctx context.Context, token string) (*models.InvitePreview, error) {
	query := `
		SELECT i.email, i.status, u.name, u.city, u.books_shared
		FROM invites i JOIN users u ON i.inviter_id = u.id
		WHERE i.token = $1`

	var p models.InvitePreview
	err := s.db.QueryRow(ctx, query, token).Scan(
		&p.Email,
		&p.Status,
		&p.InviterName,
		&p.InviterCity,
		&p.BooksShared,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invite preview: %w", err)
	}
	return &p, nil
}

func (s *InviteStore) MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE invites
		SET status = 'accepted', invited_user_id = $2, accepted_at = $3
		WHERE id = $1`

	if _, err := s.db.Exec(ctx, query, id, userID, at); err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	return nil
}

func (s *InviteStore) ListByInviter(ctx context.Context, inviterID uuid.UUID) ([]models.InviteView, error) {
	query := `
		SELECT ` + inviteColumns + `,
		       COALESCE(u.name, ''), COALESCE(u.avatar_url, ''), COALESCE(u.city, '')
		FROM invites i
		LEFT JOIN users u ON i.invited_user_id = u.id
		WHERE i.inviter_id = $1
		ORDER BY i.created_at DESC, i.id`

	rows, err := s.db.Query(ctx, query, inviterID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	invites := make([]models.InviteView, 0)
	for rows.Next() {
		var v models.InviteView
		if err := scanInviteInto(rows, &v.Invite, &v.InvitedName, &v.InvitedAvatar, &v.InvitedCity); err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invites: %w", err)
	}
	return invites, nil
}
