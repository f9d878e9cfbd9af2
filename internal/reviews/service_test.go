package reviews

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository/memory"
	"go.uber.org/zap"
)

type loan struct {
	store    *memory.Store
	owner    *models.User
	borrower *models.User
	request  *models.BorrowRequest
}

func newLoan(t *testing.T, status models.RequestStatus) *loan {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()

	owner := &models.User{Name: "owner", Email: "owner@example.com"}
	borrower := &models.User{Name: "borrower", Email: "borrower@example.com"}
	for _, u := range []*models.User{owner, borrower} {
		if err := repos.Users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	book := &models.Book{OwnerID: owner.ID, Title: "Dune", Status: models.BookAvailable}
	_ = repos.Books.Create(ctx, book)
	req := &models.BorrowRequest{BookID: book.ID, RequesterID: borrower.ID, OwnerID: owner.ID, Status: models.RequestPending, BorrowDays: 7}
	if err := repos.Requests.Create(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if status != models.RequestPending {
		req.Status = status
		if err := repos.Requests.Update(ctx, req); err != nil {
			t.Fatalf("update request: %v", err)
		}
	}
	return &loan{store: store, owner: owner, borrower: borrower, request: req}
}

func TestCreateReviewUpdatesRating(t *testing.T) {
	l := newLoan(t, models.RequestReturned)
	svc := NewService(l.store, zap.NewNop())
	ctx := context.Background()

	rv, err := svc.Create(ctx, l.borrower.ID, CreateInput{BorrowRequestID: l.request.ID, Rating: 3, Comment: " great "})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}
	if rv.ReviewedID != l.owner.ID || rv.Comment != "great" {
		t.Fatalf("unexpected review %+v", rv)
	}

	owner, _ := l.store.Repos().Users.GetByID(ctx, l.owner.ID)
	if owner.Rating != 3 || owner.RatingCount != 1 {
		t.Fatalf("first review should replace the default, got %v/%d", owner.Rating, owner.RatingCount)
	}

	if _, err := svc.Create(ctx, l.owner.ID, CreateInput{BorrowRequestID: l.request.ID, Rating: 4}); err != nil {
		t.Fatalf("owner review: %v", err)
	}
	list, _ := svc.ListForUser(ctx, l.borrower.ID)
	if len(list) != 1 || list[0].ReviewerName != "owner" || list[0].BookTitle != "Dune" {
		t.Fatalf("unexpected reviews %+v", list)
	}
}

func TestCreateReviewRules(t *testing.T) {
	ctx := context.Background()

	l := newLoan(t, models.RequestBorrowed)
	svc := NewService(l.store, zap.NewNop())
	if _, err := svc.Create(ctx, l.borrower.ID, CreateInput{BorrowRequestID: l.request.ID, Rating: 5}); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state before return, got %v", err)
	}

	l = newLoan(t, models.RequestReturned)
	svc = NewService(l.store, zap.NewNop())
	if _, err := svc.Create(ctx, uuid.New(), CreateInput{BorrowRequestID: l.request.ID, Rating: 5}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}
	if _, err := svc.Create(ctx, l.borrower.ID, CreateInput{BorrowRequestID: l.request.ID, Rating: 0}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for rating 0, got %v", err)
	}
	if _, err := svc.Create(ctx, l.borrower.ID, CreateInput{BorrowRequestID: uuid.New(), Rating: 5}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Create(ctx, l.borrower.ID, CreateInput{BorrowRequestID: l.request.ID, Rating: 5}); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := svc.Create(ctx, l.borrower.ID, CreateInput{BorrowRequestID: l.request.ID, Rating: 1}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on second review, got %v", err)
	}

	owner, _ := l.store.Repos().Users.GetByID(ctx, l.owner.ID)
	if owner.RatingCount != 1 || owner.Rating != 5 {
		t.Fatalf("rejected review must not change the rating, got %v/%d", owner.Rating, owner.RatingCount)
	}
}
