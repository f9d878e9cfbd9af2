// Package reviews lets the two parties of a finished loan rate each other.
package reviews

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
	"go.uber.org/zap"
)

const MaxCommentLength = 2000

type Service struct {
	store  repository.Store
	logger *zap.Logger
}

func NewService(store repository.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

type CreateInput struct {
	BorrowRequestID uuid.UUID
	Rating          int
	Comment         string
}

// Create records reviewerID's review of the other party of a returned loan
// and folds the rating into that user's running mean, in one transaction.
func (s *Service) Create(ctx context.Context, reviewerID uuid.UUID, in CreateInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.InvalidArgument("rating must be between 1 and 5")
	}
	comment := strings.TrimSpace(in.Comment)
	if len([]rune(comment)) > MaxCommentLength {
		return nil, apperr.InvalidArgument("comment is too long")
	}

	var review *models.Review
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		req, err := r.Requests.GetByID(ctx, in.BorrowRequestID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.NotFound("borrow request not found")
		}

		var reviewedID uuid.UUID
		switch reviewerID {
		case req.OwnerID:
			reviewedID = req.RequesterID
		case req.RequesterID:
			reviewedID = req.OwnerID
		default:
			return apperr.Forbidden("you are not a party to this loan")
		}
		if req.Status != models.RequestReturned {
			return apperr.InvalidState("only returned loans can be reviewed")
		}

		exists, err := r.Reviews.Exists(ctx, reviewerID, req.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("you already reviewed this loan")
		}

		review = &models.Review{
			ReviewerID:      reviewerID,
			ReviewedID:      reviewedID,
			BorrowRequestID: req.ID,
			Rating:          in.Rating,
			Comment:         comment,
		}
		if err := r.Reviews.Create(ctx, review); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict("you already reviewed this loan")
			}
			return err
		}
		return r.Users.ApplyRating(ctx, reviewedID, in.Rating)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review created",
		zap.String("reviewer_id", reviewerID.String()),
		zap.String("reviewed_id", review.ReviewedID.String()),
		zap.Int("rating", review.Rating),
	)
	return review, nil
}

// ListForUser returns reviews about userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ReviewView, error) {
	return s.store.Repos().Reviews.ListForUser(ctx, userID)
}
