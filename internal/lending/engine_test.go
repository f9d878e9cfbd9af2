package lending

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
	"github.com/lalith-99/bookshare/internal/repository/memory"
	"go.uber.org/zap"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *memory.Store
	engine *Engine
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memory.NewStore(),
		now:   time.Date(2025, 3, 10, 22, 30, 0, 0, time.UTC),
	}
	f.engine = NewEngine(f.store, zap.NewNop())
	f.engine.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) user(name string) *models.User {
	f.t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := f.store.Repos().Users.Create(f.ctx, u); err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) book(owner *models.User, title string) *models.Book {
	f.t.Helper()
	b := &models.Book{OwnerID: owner.ID, Title: title, Author: "Someone", Status: models.BookAvailable, MaxBorrowDays: 14}
	if err := f.store.Repos().Books.Create(f.ctx, b); err != nil {
		f.t.Fatalf("create book: %v", err)
	}
	return b
}

func (f *fixture) request(requester *models.User, book *models.Book, days int) *models.BorrowRequestView {
	f.t.Helper()
	v, err := f.engine.Create(f.ctx, requester.ID, CreateInput{BookID: book.ID, BorrowDays: days})
	if err != nil {
		f.t.Fatalf("create request: %v", err)
	}
	return v
}

func (f *fixture) bookStatus(id uuid.UUID) models.BookStatus {
	f.t.Helper()
	b, err := f.store.Repos().Books.GetByID(f.ctx, id)
	if err != nil || b == nil {
		f.t.Fatalf("get book: %v", err)
	}
	return b.Status
}

func (f *fixture) requestStatus(id uuid.UUID) models.RequestStatus {
	f.t.Helper()
	r, err := f.store.Repos().Requests.GetByID(f.ctx, id)
	if err != nil || r == nil {
		f.t.Fatalf("get request: %v", err)
	}
	return r.Status
}

// assertConsistent checks that the book status agrees with its requests:
// at most one approved/borrowed request, and the book mirrors it.
func (f *fixture) assertConsistent(bookID uuid.UUID) {
	f.t.Helper()
	reqs, err := f.store.Repos().Requests.ListForBook(f.ctx, bookID)
	if err != nil {
		f.t.Fatalf("list requests: %v", err)
	}
	var approved, borrowed int
	for _, r := range reqs {
		switch r.Status {
		case models.RequestApproved:
			approved++
		case models.RequestBorrowed:
			borrowed++
		}
	}
	if approved+borrowed > 1 {
		f.t.Fatalf("book %s has %d active requests", bookID, approved+borrowed)
	}
	want := models.BookAvailable
	if approved == 1 {
		want = models.BookReserved
	}
	if borrowed == 1 {
		want = models.BookBorrowed
	}
	if got := f.bookStatus(bookID); got != want {
		f.t.Fatalf("book status = %s, want %s", got, want)
	}
}

func expectKind(t *testing.T, err error, want *apperr.Error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %s error, got %v", want.Kind, err)
	}
}

func TestFullLoanLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.user("alice")
	b := f.user("bob")
	dune := f.book(a, "Dune")

	req := f.request(b, dune, 14)
	if req.Status != models.RequestPending || req.OwnerID != a.ID || req.BorrowDays != 14 {
		t.Fatalf("unexpected new request %+v", req.BorrowRequest)
	}
	f.assertConsistent(dune.ID)

	v, err := f.engine.Approve(f.ctx, a.ID, req.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if v.Status != models.RequestApproved || v.RespondedAt == nil {
		t.Fatalf("unexpected approved request %+v", v.BorrowRequest)
	}
	if f.bookStatus(dune.ID) != models.BookReserved {
		t.Fatalf("book should be reserved")
	}
	f.assertConsistent(dune.ID)

	v, err = f.engine.MarkBorrowed(f.ctx, a.ID, req.ID)
	if err != nil {
		t.Fatalf("mark borrowed: %v", err)
	}
	if v.DueDate == nil || v.DueDate.String() != "2025-03-24" {
		t.Fatalf("due date = %v, want 2025-03-24", v.DueDate)
	}
	if f.bookStatus(dune.ID) != models.BookBorrowed {
		t.Fatalf("book should be borrowed")
	}
	borrower, _ := f.store.Repos().Users.GetByID(f.ctx, b.ID)
	if borrower.BooksBorrowed != 1 {
		t.Fatalf("books_borrowed = %d, want 1", borrower.BooksBorrowed)
	}
	f.assertConsistent(dune.ID)

	v, err = f.engine.MarkReturned(f.ctx, b.ID, req.ID)
	if err != nil {
		t.Fatalf("mark returned: %v", err)
	}
	if v.Status != models.RequestReturned || v.ReturnedAt == nil {
		t.Fatalf("unexpected returned request %+v", v.BorrowRequest)
	}
	if f.bookStatus(dune.ID) != models.BookAvailable {
		t.Fatalf("book should be available again")
	}
	f.assertConsistent(dune.ID)
}

func TestDueDateUsesUTCCalendarDate(t *testing.T) {
	f := newFixture(t)
	est := time.FixedZone("EST", -5*3600)
	// 21:00 EST on the 10th is already the 11th in UTC.
	f.now = time.Date(2025, 3, 10, 21, 0, 0, 0, est)

	a := f.user("alice")
	b := f.user("bob")
	book := f.book(a, "Dune")
	req := f.request(b, book, 1)
	_, _ = f.engine.Approve(f.ctx, a.ID, req.ID)

	v, err := f.engine.MarkBorrowed(f.ctx, a.ID, req.ID)
	if err != nil {
		t.Fatalf("mark borrowed: %v", err)
	}
	if v.DueDate.String() != "2025-03-12" {
		t.Fatalf("due date = %s, want 2025-03-12", v.DueDate)
	}
}

func TestCreateDefaultsBorrowDaysToBookMax(t *testing.T) {
	f := newFixture(t)
	a := f.user("alice")
	b := f.user("bob")
	book := f.book(a, "Dune")

	req := f.request(b, book, 0)
	if req.BorrowDays != 14 {
		t.Fatalf("borrow_days = %d, want book max 14", req.BorrowDays)
	}
}

func TestCreateRejectsDuplicatePending(t *testing.T) {
	f := newFixture(t)
	a := f.user("alice")
	b := f.user("bob")
	book := f.book(a, "Dune")
	f.request(b, book, 7)

	_, err := f.engine.Create(f.ctx, b.ID, CreateInput{BookID: book.ID, BorrowDays: 7})
	expectKind(t, err, apperr.ErrConflict)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	a := f.user("alice")
	b := f.user("bob")
	c := f.user("carol")
	book := f.book(a, "Dune")

	_, err := f.engine.Create(f.ctx, b.ID, CreateInput{BookID: uuid.New()})
	expectKind(t, err, apperr.ErrNotFound)

	_, err = f.engine.Create(f.ctx, a.ID, CreateInput{BookID: book.ID})
	expectKind(t, err, apperr.ErrInvalidArgument)

	_, err = f.engine.Create(f.ctx, b.ID, CreateInput{BookID: book.ID, BorrowDays: 400})
	expectKind(t, err, apperr.ErrInvalidArgument)

	_, err = f.engine.Create(f.ctx, b.ID, CreateInput{BookID: book.ID, BorrowDays: -1})
	expectKind(t, err, apperr.ErrInvalidArgument)

	req := f.request(b, book, 7)
	if _, err := f.engine.Approve(f.ctx, a.ID, req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = f.engine.Create(f.ctx, c.ID, CreateInput{BookID: book.ID})
	expectKind(t, err, apperr.ErrConflict)
}

func TestApproveRejectsCompetingPending(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	b1 := f.user("b1")
	b2 := f.user("b2")
	book := f.book(owner, "Dune")

	r1 := f.request(b1, book, 7)
	r2 := f.request(b2, book, 7)

	if _, err := f.engine.Approve(f.ctx, owner.ID, r1.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := f.requestStatus(r2.ID); got != models.RequestRejected {
		t.Fatalf("competing request = %s, want rejected", got)
	}
	f.assertConsistent(book.ID)

	for _, action := range []Action{ActionMarkReturned, ActionMarkBorrowed, ActionCancel, ActionApprove} {
		_, err := f.engine.Transition(f.ctx, b2.ID, r2.ID, action)
		expectKind(t, err, apperr.ErrInvalidState)
	}
}

func TestApproveLeavesNonPendingAlone(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	b1 := f.user("b1")
	b2 := f.user("b2")
	book := f.book(owner, "Dune")

	old := f.request(b2, book, 7)
	if _, err := f.engine.Reject(f.ctx, owner.ID, old.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	before, _ := f.store.Repos().Requests.GetByID(f.ctx, old.ID)

	r1 := f.request(b1, book, 7)
	f.now = f.now.Add(time.Hour)
	if _, err := f.engine.Approve(f.ctx, owner.ID, r1.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	after, _ := f.store.Repos().Requests.GetByID(f.ctx, old.ID)
	if !after.RespondedAt.Equal(*before.RespondedAt) {
		t.Fatalf("rejected request was touched again")
	}
}

func TestTransitionAuthorization(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	borrower := f.user("borrower")
	stranger := f.user("stranger")
	book := f.book(owner, "Dune")
	req := f.request(borrower, book, 7)

	_, err := f.engine.Approve(f.ctx, stranger.ID, req.ID)
	expectKind(t, err, apperr.ErrForbidden)

	_, err = f.engine.Approve(f.ctx, borrower.ID, req.ID)
	expectKind(t, err, apperr.ErrForbidden)

	_, err = f.engine.Reject(f.ctx, borrower.ID, req.ID)
	expectKind(t, err, apperr.ErrForbidden)

	_, err = f.engine.Cancel(f.ctx, owner.ID, req.ID)
	expectKind(t, err, apperr.ErrForbidden)

	_, err = f.engine.MarkBorrowed(f.ctx, owner.ID, req.ID)
	expectKind(t, err, apperr.ErrInvalidState)

	_, err = f.engine.Approve(f.ctx, owner.ID, uuid.New())
	expectKind(t, err, apperr.ErrNotFound)

	if _, err := f.engine.Approve(f.ctx, owner.ID, req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = f.engine.MarkBorrowed(f.ctx, borrower.ID, req.ID)
	expectKind(t, err, apperr.ErrForbidden)

	_, err = f.engine.MarkReturned(f.ctx, owner.ID, req.ID)
	expectKind(t, err, apperr.ErrInvalidState)

	if _, err := f.engine.MarkBorrowed(f.ctx, owner.ID, req.ID); err != nil {
		t.Fatalf("mark borrowed: %v", err)
	}
	_, err = f.engine.MarkReturned(f.ctx, stranger.ID, req.ID)
	expectKind(t, err, apperr.ErrForbidden)
	if _, err := f.engine.MarkReturned(f.ctx, owner.ID, req.ID); err != nil {
		t.Fatalf("owner mark returned: %v", err)
	}
	f.assertConsistent(book.ID)
}

func TestCancelWithdrawsPending(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	borrower := f.user("borrower")
	book := f.book(owner, "Dune")
	req := f.request(borrower, book, 7)

	v, err := f.engine.Transition(f.ctx, borrower.ID, req.ID, ActionCancel)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if v.Status != models.RequestRejected {
		t.Fatalf("status = %s, want rejected", v.Status)
	}
	f.request(borrower, book, 7)
}

func TestTransitionUnknownAction(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Transition(f.ctx, uuid.New(), uuid.New(), Action("steal"))
	expectKind(t, err, apperr.ErrInvalidArgument)
}

func TestOverdueIsComputedOnRead(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	borrower := f.user("borrower")
	book := f.book(owner, "Dune")
	req := f.request(borrower, book, 3)
	_, _ = f.engine.Approve(f.ctx, owner.ID, req.ID)
	_, _ = f.engine.MarkBorrowed(f.ctx, owner.ID, req.ID)

	f.now = f.now.AddDate(0, 0, 3)
	v, err := f.engine.Get(f.ctx, borrower.ID, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Overdue {
		t.Fatalf("loan is not overdue on its due date")
	}

	f.now = f.now.AddDate(0, 0, 1)
	list, err := f.engine.List(f.ctx, borrower.ID, repository.RoleRequester)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || !list[0].Overdue {
		t.Fatalf("expected one overdue loan, got %+v", list)
	}

	owned, _ := f.engine.List(f.ctx, owner.ID, repository.RoleOwner)
	if len(owned) != 1 || owned[0].BookTitle != "Dune" || owned[0].RequesterName != "borrower" {
		t.Fatalf("unexpected owner view %+v", owned)
	}
}

func TestGetAndListForBookAccess(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	borrower := f.user("borrower")
	stranger := f.user("stranger")
	book := f.book(owner, "Dune")
	req := f.request(borrower, book, 7)

	_, err := f.engine.Get(f.ctx, stranger.ID, req.ID)
	expectKind(t, err, apperr.ErrForbidden)

	_, err = f.engine.ListForBook(f.ctx, borrower.ID, book.ID)
	expectKind(t, err, apperr.ErrForbidden)

	reqs, err := f.engine.ListForBook(f.ctx, owner.ID, book.ID)
	if err != nil || len(reqs) != 1 {
		t.Fatalf("list for book: %v (%d)", err, len(reqs))
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]repository.BorrowRequestRole{
		"":          repository.RoleRequester,
		"requester": repository.RoleRequester,
		"owner":     repository.RoleOwner,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseRole("admin"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

// failingStore wraps the memory store and makes the borrower counter update
// fail, so a transition dies after its first writes.
type failingStore struct {
	*memory.Store
}

type failingUsers struct {
	repository.UserRepository
}

var errCounter = errors.New("counter update failed")

func (failingUsers) IncrementBooksBorrowed(context.Context, uuid.UUID) error {
	return errCounter
}

func (s failingStore) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	return s.Store.WithinTx(ctx, func(r repository.Repos) error {
		r.Users = failingUsers{r.Users}
		return fn(r)
	})
}

func TestMarkBorrowedIsAtomic(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	borrower := f.user("borrower")
	book := f.book(owner, "Dune")
	req := f.request(borrower, book, 7)
	if _, err := f.engine.Approve(f.ctx, owner.ID, req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	broken := NewEngine(failingStore{f.store}, zap.NewNop())
	if _, err := broken.MarkBorrowed(f.ctx, owner.ID, req.ID); !errors.Is(err, errCounter) {
		t.Fatalf("expected counter failure, got %v", err)
	}

	if got := f.requestStatus(req.ID); got != models.RequestApproved {
		t.Fatalf("request = %s, want approved after rollback", got)
	}
	if got := f.bookStatus(book.ID); got != models.BookReserved {
		t.Fatalf("book = %s, want reserved after rollback", got)
	}
	f.assertConsistent(book.ID)
}
