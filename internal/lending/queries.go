package lending

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
)

// ParseRole maps the role query parameter. Empty means requester.
func ParseRole(s string) (repository.BorrowRequestRole, error) {
	switch s {
	case "", string(repository.RoleRequester):
		return repository.RoleRequester, nil
	case string(repository.RoleOwner):
		return repository.RoleOwner, nil
	default:
		return "", apperr.InvalidArgument(fmt.Sprintf("role must be %q or %q", repository.RoleRequester, repository.RoleOwner))
	}
}

// List returns the caller's requests on one side, newest first.
func (e *Engine) List(ctx context.Context, callerID uuid.UUID, role repository.BorrowRequestRole) ([]models.BorrowRequestView, error) {
	views, err := e.store.Repos().Requests.ListForUser(ctx, callerID, role)
	if err != nil {
		return nil, err
	}
	today := models.DateOf(e.now())
	for i := range views {
		views[i].Overdue = isOverdue(&views[i].BorrowRequest, today)
	}
	return views, nil
}

// Get returns one request to either party.
func (e *Engine) Get(ctx context.Context, callerID, requestID uuid.UUID) (*models.BorrowRequestView, error) {
	view, err := e.store.Repos().Requests.GetView(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, apperr.NotFound("borrow request not found")
	}
	if callerID != view.OwnerID && callerID != view.RequesterID {
		return nil, apperr.Forbidden("you are not a party to this request")
	}
	return e.decorate(view), nil
}

// ListForBook shows the owner every request ever made on their book,
// oldest first.
func (e *Engine) ListForBook(ctx context.Context, callerID, bookID uuid.UUID) ([]models.BorrowRequest, error) {
	repos := e.store.Repos()
	book, err := repos.Books.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apperr.NotFound("book not found")
	}
	if book.OwnerID != callerID {
		return nil, apperr.Forbidden("only the book owner can see its requests")
	}
	return repos.Requests.ListForBook(ctx, bookID)
}

func (e *Engine) decorate(v *models.BorrowRequestView) *models.BorrowRequestView {
	v.Overdue = isOverdue(&v.BorrowRequest, models.DateOf(e.now()))
	return v
}

// isOverdue is evaluated on read; nothing sweeps for late loans.
func isOverdue(r *models.BorrowRequest, today models.Date) bool {
	return r.Status == models.RequestBorrowed && r.DueDate != nil && r.DueDate.Before(today)
}
