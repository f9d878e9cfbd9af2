package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
)

type requestRepo struct{ access }

func isActive(s models.RequestStatus) bool {
	return s == models.RequestApproved || s == models.RequestBorrowed
}

// checkUnique enforces the two partial unique indexes on borrow_requests:
// one pending request per (book, requester) and one active request per book.
func checkUnique(st *state, r models.BorrowRequest) error {
	for _, other := range st.requests.rows {
		if other.ID == r.ID || other.BookID != r.BookID {
			continue
		}
		if r.Status == models.RequestPending && other.Status == models.RequestPending &&
			other.RequesterID == r.RequesterID {
			return repository.ErrDuplicate
		}
		if isActive(r.Status) && isActive(other.Status) {
			return repository.ErrDuplicate
		}
	}
	return nil
}

func (r requestRepo) Create(_ context.Context, req *models.BorrowRequest) error {
	return r.with(func(st *state, now time.Time) error {
		req.ID = uuid.New()
		if req.RequestedAt.IsZero() {
			req.RequestedAt = now
		}
		if err := checkUnique(st, *req); err != nil {
			return fmt.Errorf("insert borrow request: %w", err)
		}
		st.requests.put(req.ID, *req)
		return nil
	})
}

func (r requestRepo) GetByID(_ context.Context, id uuid.UUID) (*models.BorrowRequest, error) {
	var out *models.BorrowRequest
	err := r.with(func(st *state, _ time.Time) error {
		if req, ok := st.requests.get(id); ok {
			out = &req
		}
		return nil
	})
	return out, err
}

func (r requestRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.BorrowRequest, error) {
	return r.GetByID(ctx, id)
}

func (r requestRepo) GetView(_ context.Context, id uuid.UUID) (*models.BorrowRequestView, error) {
	var out *models.BorrowRequestView
	err := r.with(func(st *state, _ time.Time) error {
		if req, ok := st.requests.get(id); ok {
			out = ptr(requestView(st, req))
		}
		return nil
	})
	return out, err
}

func requestView(st *state, req models.BorrowRequest) models.BorrowRequestView {
	book, _ := st.books.get(req.BookID)
	return models.BorrowRequestView{
		BorrowRequest: req,
		BookTitle:     book.Title,
		BookCover:     book.CoverURL,
		RequesterName: st.userName(req.RequesterID),
		OwnerName:     st.userName(req.OwnerID),
	}
}

func (r requestRepo) Update(_ context.Context, req *models.BorrowRequest) error {
	return r.with(func(st *state, _ time.Time) error {
		cur, ok := st.requests.get(req.ID)
		if !ok {
			return fmt.Errorf("update borrow request %s: not found", req.ID)
		}
		cur.Status = req.Status
		cur.RespondedAt = req.RespondedAt
		cur.BorrowedAt = req.BorrowedAt
		cur.DueDate = req.DueDate
		cur.ReturnedAt = req.ReturnedAt
		if err := checkUnique(st, cur); err != nil {
			return fmt.Errorf("update borrow request: %w", err)
		}
		st.requests.put(cur.ID, cur)
		return nil
	})
}

func (r requestRepo) HasPending(_ context.Context, bookID, requesterID uuid.UUID) (bool, error) {
	found := false
	err := r.with(func(st *state, _ time.Time) error {
		for _, req := range st.requests.rows {
			if req.BookID == bookID && req.RequesterID == requesterID && req.Status == models.RequestPending {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r requestRepo) HasActive(_ context.Context, bookID uuid.UUID) (bool, error) {
	found := false
	err := r.with(func(st *state, _ time.Time) error {
		for _, req := range st.requests.rows {
			if req.BookID == bookID && isActive(req.Status) {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r requestRepo) RejectPending(_ context.Context, bookID, exceptID uuid.UUID, at time.Time) (int64, error) {
	var n int64
	err := r.with(func(st *state, _ time.Time) error {
		for _, req := range st.requests.ascending() {
			if req.BookID != bookID || req.ID == exceptID || req.Status != models.RequestPending {
				continue
			}
			req.Status = models.RequestRejected
			req.RespondedAt = ptr(at)
			st.requests.put(req.ID, req)
			n++
		}
		return nil
	})
	return n, err
}

func (r requestRepo) ListForBook(_ context.Context, bookID uuid.UUID) ([]models.BorrowRequest, error) {
	out := make([]models.BorrowRequest, 0)
	err := r.with(func(st *state, _ time.Time) error {
		for _, req := range st.requests.ascending() {
			if req.BookID == bookID {
				out = append(out, req)
			}
		}
		return nil
	})
	return out, err
}

func (r requestRepo) ListForUser(_ context.Context, userID uuid.UUID, role repository.BorrowRequestRole) ([]models.BorrowRequestView, error) {
	out := make([]models.BorrowRequestView, 0)
	err := r.with(func(st *state, _ time.Time) error {
		for _, req := range st.requests.descending() {
			side := req.RequesterID
			if role == repository.RoleOwner {
				side = req.OwnerID
			}
			if side == userID {
				out = append(out, requestView(st, req))
			}
		}
		return nil
	})
	return out, err
}
