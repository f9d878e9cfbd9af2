// Package lending drives borrow requests through their lifecycle and keeps
// each book's status in step with its requests.
//
//	pending ──approve──▶ approved ──mark_borrowed──▶ borrowed ──mark_returned──▶ returned
//	   │
//	   ├──reject (owner)──▶ rejected
//	   └──cancel (requester)──▶ rejected
//
// Every transition runs in one transaction that locks the book row and then
// the request row, always in that order. A book is reserved while one of
// its requests is approved and borrowed while one is borrowed; nothing else
// writes those two book statuses.
package lending

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
	"go.uber.org/zap"
)

const (
	MinBorrowDays    = 1
	MaxBorrowDays    = 365
	MaxMessageLength = 1000
)

// Action names a transition as it arrives over the API.
type Action string

const (
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionMarkBorrowed Action = "mark_borrowed"
	ActionMarkReturned Action = "mark_returned"
	ActionCancel       Action = "cancel"
)

type Engine struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(store repository.Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for timestamps and due dates.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

type CreateInput struct {
	BookID  uuid.UUID
	Message string
	// BorrowDays of zero means the book's max_borrow_days.
	BorrowDays int
}

// Create opens a pending request from callerID for a book they do not own.
func (e *Engine) Create(ctx context.Context, callerID uuid.UUID, in CreateInput) (*models.BorrowRequestView, error) {
	message := strings.TrimSpace(in.Message)
	if len([]rune(message)) > MaxMessageLength {
		return nil, apperr.InvalidArgument(fmt.Sprintf("message must be at most %d characters", MaxMessageLength))
	}
	if in.BorrowDays < 0 {
		return nil, apperr.InvalidArgument("borrow_days must be positive")
	}

	var view *models.BorrowRequestView
	err := e.store.WithinTx(ctx, func(r repository.Repos) error {
		book, err := r.Books.GetForUpdate(ctx, in.BookID)
		if err != nil {
			return err
		}
		if book == nil {
			return apperr.NotFound("book not found")
		}
		if book.Status != models.BookAvailable {
			return apperr.Conflict("book is not available")
		}
		if book.OwnerID == callerID {
			return apperr.InvalidArgument("you cannot borrow your own book")
		}

		days := in.BorrowDays
		if days == 0 {
			days = book.MaxBorrowDays
		}
		if days < MinBorrowDays || days > MaxBorrowDays {
			return apperr.InvalidArgument(fmt.Sprintf("borrow_days must be between %d and %d", MinBorrowDays, MaxBorrowDays))
		}

		pending, err := r.Requests.HasPending(ctx, book.ID, callerID)
		if err != nil {
			return err
		}
		if pending {
			return apperr.Conflict("you already have a pending request for this book")
		}

		req := &models.BorrowRequest{
			BookID:      book.ID,
			RequesterID: callerID,
			OwnerID:     book.OwnerID,
			Status:      models.RequestPending,
			Message:     message,
			BorrowDays:  days,
			RequestedAt: e.now(),
		}
		if err := r.Requests.Create(ctx, req); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict("you already have a pending request for this book")
			}
			return err
		}

		view, err = r.Requests.GetView(ctx, req.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("borrow request created",
		zap.String("request_id", view.ID.String()),
		zap.String("book_id", view.BookID.String()),
		zap.String("requester_id", callerID.String()),
	)
	return e.decorate(view), nil
}

// Transition dispatches a named action.
func (e *Engine) Transition(ctx context.Context, callerID, requestID uuid.UUID, action Action) (*models.BorrowRequestView, error) {
	switch action {
	case ActionApprove:
		return e.Approve(ctx, callerID, requestID)
	case ActionReject:
		return e.Reject(ctx, callerID, requestID)
	case ActionMarkBorrowed:
		return e.MarkBorrowed(ctx, callerID, requestID)
	case ActionMarkReturned:
		return e.MarkReturned(ctx, callerID, requestID)
	case ActionCancel:
		return e.Cancel(ctx, callerID, requestID)
	default:
		return nil, apperr.InvalidArgument(fmt.Sprintf("unknown action %q", action))
	}
}

// Approve accepts a pending request, reserves the book and rejects every
// other pending request on it. The first approval wins; there is no queue.
func (e *Engine) Approve(ctx context.Context, callerID, requestID uuid.UUID) (*models.BorrowRequestView, error) {
	var rejected int64
	view, err := e.transition(ctx, callerID, requestID, func(r repository.Repos, req *models.BorrowRequest, book *models.Book, now time.Time) error {
		if err := requireStatus(req, models.RequestPending); err != nil {
			return err
		}
		if callerID != req.OwnerID {
			return apperr.Forbidden("only the book owner can approve a request")
		}
		if book.Status != models.BookAvailable {
			return apperr.Conflict("book is not available")
		}

		req.Status = models.RequestApproved
		req.RespondedAt = &now
		if err := r.Requests.Update(ctx, req); err != nil {
			return err
		}
		if err := r.Books.SetStatus(ctx, book.ID, models.BookReserved); err != nil {
			return err
		}
		n, err := r.Requests.RejectPending(ctx, book.ID, req.ID, now)
		rejected = n
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("borrow request approved",
		zap.String("request_id", requestID.String()),
		zap.Int64("competing_rejected", rejected),
	)
	return view, nil
}

// Reject declines a pending request. The book is untouched.
func (e *Engine) Reject(ctx context.Context, callerID, requestID uuid.UUID) (*models.BorrowRequestView, error) {
	return e.transition(ctx, callerID, requestID, func(r repository.Repos, req *models.BorrowRequest, _ *models.Book, now time.Time) error {
		if err := requireStatus(req, models.RequestPending); err != nil {
			return err
		}
		if callerID != req.OwnerID {
			return apperr.Forbidden("only the book owner can reject a request")
		}
		req.Status = models.RequestRejected
		req.RespondedAt = &now
		return r.Requests.Update(ctx, req)
	})
}

// Cancel lets the requester withdraw a pending request. It ends in the same
// rejected state as an owner's refusal.
func (e *Engine) Cancel(ctx context.Context, callerID, requestID uuid.UUID) (*models.BorrowRequestView, error) {
	return e.transition(ctx, callerID, requestID, func(r repository.Repos, req *models.BorrowRequest, _ *models.Book, now time.Time) error {
		if err := requireStatus(req, models.RequestPending); err != nil {
			return err
		}
		if callerID != req.RequesterID {
			return apperr.Forbidden("only the requester can cancel a request")
		}
		req.Status = models.RequestRejected
		req.RespondedAt = &now
		return r.Requests.Update(ctx, req)
	})
}

// MarkBorrowed records the hand-over. The due date is the UTC calendar date
// of the hand-over plus borrow_days.
func (e *Engine) MarkBorrowed(ctx context.Context, callerID, requestID uuid.UUID) (*models.BorrowRequestView, error) {
	return e.transition(ctx, callerID, requestID, func(r repository.Repos, req *models.BorrowRequest, book *models.Book, now time.Time) error {
		if err := requireStatus(req, models.RequestApproved); err != nil {
			return err
		}
		if callerID != req.OwnerID {
			return apperr.Forbidden("only the book owner can mark a book as borrowed")
		}

		due := models.DateOf(now).AddDays(req.BorrowDays)
		req.Status = models.RequestBorrowed
		req.BorrowedAt = &now
		req.DueDate = &due
		if err := r.Requests.Update(ctx, req); err != nil {
			return err
		}
		if err := r.Books.SetStatus(ctx, book.ID, models.BookBorrowed); err != nil {
			return err
		}
		return r.Users.IncrementBooksBorrowed(ctx, req.RequesterID)
	})
}

// MarkReturned closes the loan and frees the book. Either party may do it.
func (e *Engine) MarkReturned(ctx context.Context, callerID, requestID uuid.UUID) (*models.BorrowRequestView, error) {
	return e.transition(ctx, callerID, requestID, func(r repository.Repos, req *models.BorrowRequest, book *models.Book, now time.Time) error {
		if err := requireStatus(req, models.RequestBorrowed); err != nil {
			return err
		}
		req.Status = models.RequestReturned
		req.ReturnedAt = &now
		if err := r.Requests.Update(ctx, req); err != nil {
			return err
		}
		return r.Books.SetStatus(ctx, book.ID, models.BookAvailable)
	})
}

type stepFunc func(r repository.Repos, req *models.BorrowRequest, book *models.Book, now time.Time) error

// transition loads and locks the book and then the request, checks the
// caller is a party and runs step. Checks happen in a fixed order: unknown
// request, non-party caller, then whatever step checks (state before role).
func (e *Engine) transition(ctx context.Context, callerID, requestID uuid.UUID, step stepFunc) (*models.BorrowRequestView, error) {
	var view *models.BorrowRequestView
	err := e.store.WithinTx(ctx, func(r repository.Repos) error {
		peek, err := r.Requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if peek == nil {
			return apperr.NotFound("borrow request not found")
		}

		book, err := r.Books.GetForUpdate(ctx, peek.BookID)
		if err != nil {
			return err
		}
		req, err := r.Requests.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if book == nil || req == nil {
			return apperr.NotFound("borrow request not found")
		}
		if callerID != req.OwnerID && callerID != req.RequesterID {
			return apperr.Forbidden("you are not a party to this request")
		}

		if err := step(r, req, book, e.now()); err != nil {
			return err
		}
		view, err = r.Requests.GetView(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e.decorate(view), nil
}

func requireStatus(req *models.BorrowRequest, want models.RequestStatus) error {
	if req.Status != want {
		return apperr.InvalidState(fmt.Sprintf("request is %s, not %s", req.Status, want))
	}
	return nil
}
