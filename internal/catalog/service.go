// Package catalog owns the books members list for lending: creating and
// editing them, searching the catalog and removing a book once nobody is
// holding it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/metadata"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultBorrowDays = 14
	MaxBorrowDays     = 365
	DefaultCondition  = "Good"
	DefaultLanguage   = "English"
)

type Service struct {
	store    repository.Store
	metadata metadata.Lookuper
	logger   *zap.Logger
	now      func() time.Time
}

// NewService builds the catalog. meta may be nil, which turns ISBN
// enrichment and lookups off.
func NewService(store repository.Store, meta metadata.Lookuper, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		metadata: meta,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	Title         string
	Author        string
	ISBN          string
	CoverURL      string
	Description   string
	Genre         string
	Condition     string
	Language      string
	MaxBorrowDays int
}

// Create lists a new available book for ownerID. Blank fields are filled from
// Open Library when an ISBN is given; a failed lookup only gets logged.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in CreateInput) (*models.Book, error) {
	in.ISBN = metadata.NormalizeISBN(in.ISBN)
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Description = strings.TrimSpace(in.Description)
	in.CoverURL = strings.TrimSpace(in.CoverURL)
	s.enrich(ctx, &in)

	if in.Title == "" || in.Author == "" {
		return nil, apperr.InvalidArgument("title and author are required")
	}
	if in.MaxBorrowDays == 0 {
		in.MaxBorrowDays = DefaultBorrowDays
	}
	if err := checkBorrowDays(in.MaxBorrowDays); err != nil {
		return nil, err
	}

	book := &models.Book{
		OwnerID:       ownerID,
		Title:         in.Title,
		Author:        in.Author,
		ISBN:          in.ISBN,
		CoverURL:      in.CoverURL,
		Description:   in.Description,
		Genre:         strings.TrimSpace(in.Genre),
		Condition:     orDefault(in.Condition, DefaultCondition),
		Language:      orDefault(in.Language, DefaultLanguage),
		Status:        models.BookAvailable,
		MaxBorrowDays: in.MaxBorrowDays,
	}
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		owner, err := r.Users.GetByID(ctx, ownerID)
		if err != nil {
			return err
		}
		if owner == nil {
			return apperr.Unauthorized("user no longer exists")
		}
		book.Lat, book.Lng = owner.Lat, owner.Lng
		book.City, book.Neighborhood = owner.City, owner.Neighborhood

		if err := r.Books.Create(ctx, book); err != nil {
			return err
		}
		return r.Users.IncrementBooksShared(ctx, ownerID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("book listed",
		zap.String("book_id", book.ID.String()),
		zap.String("owner_id", ownerID.String()),
	)
	return book, nil
}

func (s *Service) enrich(ctx context.Context, in *CreateInput) {
	if s.metadata == nil || in.ISBN == "" {
		return
	}
	if in.Title != "" && in.Author != "" && in.Description != "" && in.CoverURL != "" {
		return
	}
	info, err := s.metadata.Lookup(ctx, in.ISBN)
	if err != nil {
		s.logger.Warn("isbn enrichment skipped", zap.String("isbn", in.ISBN), zap.Error(err))
		return
	}
	in.Title = orDefault(in.Title, info.Title)
	in.Author = orDefault(in.Author, info.Author)
	in.Description = orDefault(in.Description, info.Description)
	in.CoverURL = orDefault(in.CoverURL, info.CoverURL)
}

// Lookup exposes the metadata source to clients that want to prefill a form.
func (s *Service) Lookup(ctx context.Context, isbn string) (*metadata.BookInfo, error) {
	if metadata.NormalizeISBN(isbn) == "" {
		return nil, apperr.InvalidArgument("isbn is required")
	}
	if s.metadata == nil {
		return nil, apperr.NotFound("isbn lookup is not available")
	}
	info, err := s.metadata.Lookup(ctx, isbn)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, apperr.NotFound("no book found for that isbn")
	}
	if err != nil {
		return nil, fmt.Errorf("isbn lookup: %w", err)
	}
	return info, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.BookListing, error) {
	l, err := s.store.Repos().Books.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, apperr.NotFound("book not found")
	}
	return l, nil
}

// Origin is the caller's position for distance sorting.
type Origin struct {
	Lat float64
	Lng float64
}

// List searches the catalog. Without an origin results are newest first;
// with one they carry distance_km and are sorted nearest first, books whose
// owner has no location last.
func (s *Service) List(ctx context.Context, filter models.BookFilter, origin *Origin) ([]models.BookListing, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.InvalidArgument("unknown status " + string(filter.Status))
	}
	books, err := s.store.Repos().Books.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if origin != nil {
		sortByDistance(books, *origin)
	}
	return books, nil
}

// Update applies the owner's edits. Manual status changes are limited to
// available and reserved and are refused while a loan is in progress.
func (s *Service) Update(ctx context.Context, callerID, id uuid.UUID, patch models.BookPatch) (*models.Book, error) {
	var out *models.Book
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		book, err := r.Books.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if book == nil {
			return apperr.NotFound("book not found")
		}
		if book.OwnerID != callerID {
			return apperr.Forbidden("only the owner can edit this book")
		}
		if err := validatePatch(&patch); err != nil {
			return err
		}

		if patch.Status != nil && *patch.Status != book.Status {
			active, err := r.Requests.HasActive(ctx, book.ID)
			if err != nil {
				return err
			}
			if active {
				return apperr.InvalidState("the book is part of an active loan")
			}
		}

		out, err = r.Books.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func validatePatch(p *models.BookPatch) error {
	if p.Empty() {
		return apperr.InvalidArgument("no valid fields")
	}
	for _, f := range []**string{&p.Title, &p.Author} {
		if *f == nil {
			continue
		}
		v := strings.TrimSpace(**f)
		if v == "" {
			return apperr.InvalidArgument("title and author cannot be blank")
		}
		*f = &v
	}
	if p.MaxBorrowDays != nil {
		if err := checkBorrowDays(*p.MaxBorrowDays); err != nil {
			return err
		}
	}
	if p.Status != nil {
		switch *p.Status {
		case models.BookAvailable, models.BookReserved:
		case models.BookBorrowed:
			return apperr.InvalidArgument("a book becomes borrowed only through a borrow request")
		default:
			return apperr.InvalidArgument("unknown status " + string(*p.Status))
		}
	}
	return nil
}

// Delete removes a book nobody is holding. Pending requests on it are
// rejected first so their requesters see an outcome.
func (s *Service) Delete(ctx context.Context, callerID, id uuid.UUID) error {
	var rejected int64
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		book, err := r.Books.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if book == nil {
			return apperr.NotFound("book not found")
		}
		if book.OwnerID != callerID {
			return apperr.Forbidden("only the owner can delete this book")
		}
		active, err := r.Requests.HasActive(ctx, id)
		if err != nil {
			return err
		}
		if active {
			return apperr.InvalidState("the book is part of an active loan")
		}

		rejected, err = r.Requests.RejectPending(ctx, id, uuid.Nil, s.now())
		if err != nil {
			return err
		}
		if err := r.Books.Delete(ctx, id); err != nil {
			return err
		}
		return r.Users.DecrementBooksShared(ctx, book.OwnerID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("book deleted",
		zap.String("book_id", id.String()),
		zap.Int64("rejected_requests", rejected),
	)
	return nil
}

func checkBorrowDays(days int) error {
	if days < 1 || days > MaxBorrowDays {
		return apperr.InvalidArgument(fmt.Sprintf("max_borrow_days must be between 1 and %d", MaxBorrowDays))
	}
	return nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
