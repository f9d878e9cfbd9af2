package social

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
	"github.com/lalith-99/bookshare/internal/repository/memory"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, zap.NewNop()), store
}

func addUser(t *testing.T, store *memory.Store, name, email string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, PasswordHash: "x"}
	if err := store.Repos().Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func contactIDs(t *testing.T, svc *Service, id uuid.UUID) []uuid.UUID {
	t.Helper()
	list, err := svc.ListContacts(context.Background(), id)
	if err != nil {
		t.Fatalf("list contacts: %v", err)
	}
	ids := make([]uuid.UUID, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ContactID)
	}
	return ids
}

func TestInviteExistingMemberLinksImmediately(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	a := addUser(t, store, "Alice", "alice@example.com")
	c := addUser(t, store, "Carol", "x@y.com")

	created, err := svc.CreateInvites(ctx, a.ID, []string{"  X@Y.com "})
	if err != nil {
		t.Fatalf("create invites: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d invites, want 1", len(created))
	}
	inv := created[0]
	if inv.Status != models.InviteJoined || inv.Token != "" {
		t.Fatalf("expected joined invite without token, got %+v", inv)
	}
	if inv.InvitedUserID == nil || *inv.InvitedUserID != c.ID {
		t.Fatalf("invited_user_id = %v, want %s", inv.InvitedUserID, c.ID)
	}

	if ids := contactIDs(t, svc, a.ID); len(ids) != 1 || ids[0] != c.ID {
		t.Fatalf("alice contacts = %v, want [carol]", ids)
	}
	if ids := contactIDs(t, svc, c.ID); len(ids) != 1 || ids[0] != a.ID {
		t.Fatalf("carol contacts = %v, want [alice]", ids)
	}
}

func TestInviteNewEmailGetsToken(t *testing.T) {
	svc, store := setup(t)
	a := addUser(t, store, "Alice", "alice@example.com")

	created, err := svc.CreateInvites(context.Background(), a.ID, []string{"new@example.com"})
	if err != nil {
		t.Fatalf("create invites: %v", err)
	}
	inv := created[0]
	if inv.Status != models.InvitePending || len(inv.Token) != 64 {
		t.Fatalf("expected pending invite with 64-char token, got %+v", inv)
	}
	if ids := contactIDs(t, svc, a.ID); len(ids) != 0 {
		t.Fatalf("no contact before acceptance, got %v", ids)
	}
}

func TestInviteSkipsSelfDuplicatesAndJunk(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	a := addUser(t, store, "Alice", "alice@example.com")

	if _, err := svc.CreateInvites(ctx, a.ID, []string{"old@example.com"}); err != nil {
		t.Fatalf("seed invite: %v", err)
	}

	created, err := svc.CreateInvites(ctx, a.ID, []string{
		"ALICE@example.com", "", "not-an-email", "old@example.com",
		"dup@example.com", "Dup@Example.com",
	})
	if err != nil {
		t.Fatalf("create invites: %v", err)
	}
	if len(created) != 1 || created[0].Email != "dup@example.com" {
		t.Fatalf("expected only dup@example.com, got %+v", created)
	}
}

func TestInviteBatchIsCapped(t *testing.T) {
	svc, store := setup(t)
	a := addUser(t, store, "Alice", "alice@example.com")

	emails := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		emails = append(emails, uuid.NewString()+"@example.com")
	}
	created, err := svc.CreateInvites(context.Background(), a.ID, emails)
	if err != nil {
		t.Fatalf("create invites: %v", err)
	}
	if len(created) != MaxInvitesPerBatch {
		t.Fatalf("created %d, want %d", len(created), MaxInvitesPerBatch)
	}
}

func TestInviteRequiresEmails(t *testing.T) {
	svc, store := setup(t)
	a := addUser(t, store, "Alice", "alice@example.com")
	if _, err := svc.CreateInvites(context.Background(), a.ID, nil); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestAcceptOnceThenConflict(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	a := addUser(t, store, "Alice", "alice@example.com")
	created, _ := svc.CreateInvites(ctx, a.ID, []string{"bob@example.com"})
	token := created[0].Token
	b := addUser(t, store, "Bob", "bob@example.com")

	preview, err := svc.Lookup(ctx, token)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if preview.InviterName != "Alice" || preview.Status != models.InvitePending {
		t.Fatalf("unexpected preview %+v", preview)
	}

	res, err := svc.Accept(ctx, b.ID, token)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.Inviter.ID != a.ID || !res.Connected {
		t.Fatalf("unexpected accept result %+v", res)
	}

	_, err = svc.Accept(ctx, b.ID, token)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second accept: expected conflict, got %v", err)
	}

	if ids := contactIDs(t, svc, a.ID); len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("alice contacts = %v", ids)
	}
	if ids := contactIDs(t, svc, b.ID); len(ids) != 1 || ids[0] != a.ID {
		t.Fatalf("bob contacts = %v", ids)
	}

	list, _ := svc.ListInvites(ctx, a.ID)
	if len(list) != 1 || list[0].Status != models.InviteAccepted || list[0].InvitedName != "Bob" {
		t.Fatalf("unexpected invite list %+v", list)
	}
}

func TestAcceptWhenAlreadyContactsKeepsOneEdge(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	a := addUser(t, store, "Alice", "alice@example.com")
	b := addUser(t, store, "Bob", "bob@example.com")

	if _, err := svc.CreateInvites(ctx, b.ID, []string{"alice@example.com"}); err != nil {
		t.Fatalf("bob invites alice: %v", err)
	}
	created, _ := svc.CreateInvites(ctx, a.ID, []string{"someone@example.com"})

	res, err := svc.Accept(ctx, b.ID, created[0].Token)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.Connected {
		t.Fatalf("edge already existed, Connected should be false")
	}
	if ids := contactIDs(t, svc, a.ID); len(ids) != 1 {
		t.Fatalf("expected exactly one edge, got %v", ids)
	}
	ok, _ := svc.IsContact(ctx, b.ID, a.ID)
	if !ok {
		t.Fatalf("IsContact should see the edge from either side")
	}
}

func TestAcceptErrors(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	a := addUser(t, store, "Alice", "alice@example.com")
	created, _ := svc.CreateInvites(ctx, a.ID, []string{"bob@example.com"})
	token := created[0].Token

	cases := []struct {
		name   string
		caller uuid.UUID
		token  string
		want   *apperr.Error
	}{
		{"empty token", uuid.New(), " ", apperr.ErrInvalidArgument},
		{"unknown token", uuid.New(), "nope", apperr.ErrNotFound},
		{"anonymous", uuid.Nil, token, apperr.ErrUnauthorized},
		{"own invite", a.ID, token, apperr.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Accept(ctx, tc.caller, tc.token); !errors.Is(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want.Kind, err)
			}
		})
	}

	if _, err := svc.Lookup(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("lookup unknown: %v", err)
	}
}

// brokenContacts fails every insert so we can watch the batch roll back.
type brokenContacts struct {
	repository.ContactRepository
}

var errContacts = errors.New("contacts down")

func (brokenContacts) Ensure(context.Context, models.ContactPair) (bool, error) {
	return false, errContacts
}

type brokenStore struct {
	*memory.Store
}

func (s brokenStore) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	return s.Store.WithinTx(ctx, func(r repository.Repos) error {
		r.Contacts = brokenContacts{r.Contacts}
		return fn(r)
	})
}

func TestCreateInvitesIsAllOrNothing(t *testing.T) {
	store := memory.NewStore()
	a := addUser(t, store, "Alice", "alice@example.com")
	addUser(t, store, "Carol", "carol@example.com")
	svc := NewService(brokenStore{store}, zap.NewNop())

	_, err := svc.CreateInvites(context.Background(), a.ID, []string{"new@example.com", "carol@example.com"})
	if !errors.Is(err, errContacts) {
		t.Fatalf("expected contacts failure, got %v", err)
	}
	list, _ := svc.ListInvites(context.Background(), a.ID)
	if len(list) != 0 {
		t.Fatalf("expected no invites after rollback, got %d", len(list))
	}
}
