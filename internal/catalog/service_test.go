package catalog

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/metadata"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository/memory"
	"go.uber.org/zap"
)

type stubMeta struct {
	info  *metadata.BookInfo
	err   error
	calls int
}

func (m *stubMeta) Lookup(_ context.Context, isbn string) (*metadata.BookInfo, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.info, nil
}

func newUser(t *testing.T, store *memory.Store, name string, lat, lng float64) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", City: "Pune", Lat: lat, Lng: lng}
	if err := store.Repos().Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestCreateDefaultsAndSnapshot(t *testing.T) {
	store := memory.NewStore()
	owner := newUser(t, store, "owner", 18.52, 73.85)
	svc := NewService(store, nil, zap.NewNop())
	ctx := context.Background()

	book, err := svc.Create(ctx, owner.ID, CreateInput{Title: " Dune ", Author: "Frank Herbert"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if book.Title != "Dune" || book.Condition != DefaultCondition || book.Language != DefaultLanguage {
		t.Fatalf("defaults not applied: %+v", book)
	}
	if book.MaxBorrowDays != DefaultBorrowDays || book.Status != models.BookAvailable {
		t.Fatalf("unexpected days or status: %+v", book)
	}
	if book.Lat != 18.52 || book.City != "Pune" {
		t.Fatalf("owner location not copied: %+v", book)
	}

	u, _ := store.Repos().Users.GetByID(ctx, owner.ID)
	if u.BooksShared != 1 {
		t.Fatalf("books_shared = %d, want 1", u.BooksShared)
	}
}

func TestCreateValidation(t *testing.T) {
	store := memory.NewStore()
	owner := newUser(t, store, "owner", 0, 0)
	svc := NewService(store, nil, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.Create(ctx, owner.ID, CreateInput{Title: "Dune"}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument without author, got %v", err)
	}
	if _, err := svc.Create(ctx, owner.ID, CreateInput{Title: "Dune", Author: "F", MaxBorrowDays: 400}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for 400 days, got %v", err)
	}
	if _, err := svc.Create(ctx, uuid.New(), CreateInput{Title: "Dune", Author: "F"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown owner, got %v", err)
	}
	u, _ := store.Repos().Users.GetByID(ctx, owner.ID)
	if u.BooksShared != 0 {
		t.Fatalf("failed creates must not count, got %d", u.BooksShared)
	}
}

func TestCreateEnrichesFromISBN(t *testing.T) {
	store := memory.NewStore()
	owner := newUser(t, store, "owner", 0, 0)
	meta := &stubMeta{info: &metadata.BookInfo{Title: "Dune", Author: "Frank Herbert", Description: "Sand.", CoverURL: "c.jpg"}}
	svc := NewService(store, meta, zap.NewNop())

	book, err := svc.Create(context.Background(), owner.ID, CreateInput{ISBN: "978-0441", Title: "My Dune"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if book.Title != "My Dune" || book.Author != "Frank Herbert" || book.CoverURL != "c.jpg" || book.ISBN != "9780441" {
		t.Fatalf("unexpected enrichment %+v", book)
	}

	meta.err = errors.New("upstream down")
	if _, err := svc.Create(context.Background(), owner.ID, CreateInput{ISBN: "1", Title: "T", Author: "A"}); err != nil {
		t.Fatalf("lookup failure must not block create: %v", err)
	}
	if _, err := svc.Create(context.Background(), owner.ID, CreateInput{ISBN: "1"}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument when nothing fills the title, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	meta := &stubMeta{err: metadata.ErrNotFound}
	svc := NewService(memory.NewStore(), meta, zap.NewNop())
	if _, err := svc.Lookup(context.Background(), "123"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Lookup(context.Background(), ""); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	meta.err = nil
	meta.info = &metadata.BookInfo{Title: "Dune"}
	info, err := svc.Lookup(context.Background(), "123")
	if err != nil || info.Title != "Dune" {
		t.Fatalf("lookup = %+v, %v", info, err)
	}
}

func TestListSortsByDistance(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, nil, zap.NewNop())
	ctx := context.Background()

	far := newUser(t, store, "far", 19.07, 72.87)
	near := newUser(t, store, "near", 18.53, 73.86)
	nowhere := newUser(t, store, "nowhere", 0, 0)
	for _, u := range []*models.User{nowhere, near, far} {
		if _, err := svc.Create(ctx, u.ID, CreateInput{Title: "Book by " + u.Name, Author: "A"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	plain, err := svc.List(ctx, models.BookFilter{}, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if plain[0].OwnerName != "far" || plain[0].DistanceKm != nil {
		t.Fatalf("expected newest first without distance, got %+v", plain[0])
	}

	sorted, err := svc.List(ctx, models.BookFilter{}, &Origin{Lat: 18.52, Lng: 73.85})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if sorted[0].OwnerName != "near" || sorted[1].OwnerName != "far" || sorted[2].OwnerName != "nowhere" {
		t.Fatalf("unexpected order %s, %s, %s", sorted[0].OwnerName, sorted[1].OwnerName, sorted[2].OwnerName)
	}
	if sorted[2].DistanceKm != nil {
		t.Fatalf("owner without location must have no distance")
	}
	d := *sorted[0].DistanceKm
	if d != math.Round(d*10)/10 || d <= 0 || d > 5 {
		t.Fatalf("unexpected rounded distance %v", d)
	}

	if _, err := svc.List(ctx, models.BookFilter{Status: "lost"}, nil); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for unknown status, got %v", err)
	}
}

func TestHaversine(t *testing.T) {
	// Pune to Mumbai is about 120 km as the crow flies.
	d := HaversineKm(18.5204, 73.8567, 19.0760, 72.8777)
	if d < 115 || d > 125 {
		t.Fatalf("unexpected distance %v", d)
	}
	if HaversineKm(10, 10, 10, 10) != 0 {
		t.Fatalf("same point must be zero")
	}
}

type loanFixture struct {
	store    *memory.Store
	svc      *Service
	owner    *models.User
	borrower *models.User
	book     *models.Book
}

func newLoanFixture(t *testing.T) *loanFixture {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store, nil, zap.NewNop())
	owner := newUser(t, store, "owner", 0, 0)
	borrower := newUser(t, store, "borrower", 0, 0)
	book, err := svc.Create(context.Background(), owner.ID, CreateInput{Title: "Dune", Author: "F"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return &loanFixture{store: store, svc: svc, owner: owner, borrower: borrower, book: book}
}

func (f *loanFixture) request(t *testing.T, status models.RequestStatus) *models.BorrowRequest {
	t.Helper()
	ctx := context.Background()
	req := &models.BorrowRequest{BookID: f.book.ID, RequesterID: f.borrower.ID, OwnerID: f.owner.ID, Status: models.RequestPending, BorrowDays: 7}
	if err := f.store.Repos().Requests.Create(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if status != models.RequestPending {
		req.Status = status
		if err := f.store.Repos().Requests.Update(ctx, req); err != nil {
			t.Fatalf("update request: %v", err)
		}
	}
	return req
}

func TestUpdateRules(t *testing.T) {
	f := newLoanFixture(t)
	ctx := context.Background()
	status := func(s models.BookStatus) *models.BookStatus { return &s }
	title := "Dune Messiah"

	if _, err := f.svc.Update(ctx, f.owner.ID, f.book.ID, models.BookPatch{}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for empty patch, got %v", err)
	}
	if _, err := f.svc.Update(ctx, f.borrower.ID, f.book.ID, models.BookPatch{Title: &title}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for non-owner, got %v", err)
	}
	if _, err := f.svc.Update(ctx, f.owner.ID, uuid.New(), models.BookPatch{Title: &title}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.Update(ctx, f.owner.ID, f.book.ID, models.BookPatch{Status: status(models.BookBorrowed)}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for manual borrowed, got %v", err)
	}

	got, err := f.svc.Update(ctx, f.owner.ID, f.book.ID, models.BookPatch{Title: &title, Status: status(models.BookReserved)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title || got.Status != models.BookReserved {
		t.Fatalf("unexpected book %+v", got)
	}
	if _, err := f.svc.Update(ctx, f.owner.ID, f.book.ID, models.BookPatch{Status: status(models.BookAvailable)}); err != nil {
		t.Fatalf("toggle back to available: %v", err)
	}

	f.request(t, models.RequestApproved)
	if _, err := f.svc.Update(ctx, f.owner.ID, f.book.ID, models.BookPatch{Status: status(models.BookReserved)}); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state during a loan, got %v", err)
	}
	if _, err := f.svc.Update(ctx, f.owner.ID, f.book.ID, models.BookPatch{Title: &title}); err != nil {
		t.Fatalf("plain edits stay allowed during a loan: %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := newLoanFixture(t)
	ctx := context.Background()

	if err := f.svc.Delete(ctx, f.borrower.ID, f.book.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	active := f.request(t, models.RequestBorrowed)
	if err := f.svc.Delete(ctx, f.owner.ID, f.book.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state with a loan out, got %v", err)
	}

	active.Status = models.RequestReturned
	if err := f.store.Repos().Requests.Update(ctx, active); err != nil {
		t.Fatalf("return: %v", err)
	}
	f.request(t, models.RequestPending)
	if err := f.svc.Delete(ctx, f.owner.ID, f.book.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if b, _ := f.store.Repos().Books.GetByID(ctx, f.book.ID); b != nil {
		t.Fatalf("book still present")
	}
	u, _ := f.store.Repos().Users.GetByID(ctx, f.owner.ID)
	if u.BooksShared != 0 {
		t.Fatalf("books_shared = %d, want 0", u.BooksShared)
	}
	if err := f.svc.Delete(ctx, f.owner.ID, f.book.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
