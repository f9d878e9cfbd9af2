package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/models"
)

type ReviewStore struct {
	db DBTX
}

func NewReviewStore(db DBTX) *ReviewStore {
	return &ReviewStore{db: db}
}

func (s *ReviewStore) Create(ctx context.Context, r *models.Review) error {
	query := `
		INSERT INTO reviews (reviewer_id, reviewed_id, borrow_request_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, reviewer_id, reviewed_id, borrow_request_id, rating, comment, created_at`

	err := s.db.QueryRow(ctx, query,
		r.ReviewerID, r.ReviewedID, r.BorrowRequestID, r.Rating, r.Comment,
	).Scan(
		&r.ID,
		&r.ReviewerID,
		&r.ReviewedID,
		&r.BorrowRequestID,
		&r.Rating,
		&r.Comment,
		&r.CreatedAt,
	)
	if err != nil {
		return wrapWrite("insert review", err)
	}
	return nil
}

func (s *ReviewStore) Exists(ctx context.Context, reviewerID, borrowRequestID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reviews WHERE reviewer_id = $1 AND borrow_request_id = $2
		)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, reviewerID, borrowRequestID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return exists, nil
}

func (s *ReviewStore) ListForUser(ctx context.Context, reviewedID uuid.UUID) ([]models.ReviewView, error) {
	query := `
		SELECT rv.id, rv.reviewer_id, rv.reviewed_id, rv.borrow_request_id, rv.rating, rv.comment,
		       rv.created_at, u.name, u.avatar_url, b.title
		FROM reviews rv
		JOIN users u ON rv.reviewer_id = u.id
		JOIN borrow_requests r ON rv.borrow_request_id = r.id
		JOIN books b ON r.book_id = b.id
		WHERE rv.reviewed_id = $1
		ORDER BY rv.created_at DESC, rv.id`

	rows, err := s.db.Query(ctx, query, reviewedID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]models.ReviewView, 0)
	for rows.Next() {
		var v models.ReviewView
		if err := rows.Scan(
			&v.ID,
			&v.ReviewerID,
			&v.ReviewedID,
			&v.BorrowRequestID,
			&v.Rating,
			&v.Comment,
			&v.CreatedAt,
			&v.ReviewerName,
			&v.ReviewerAvatar,
			&v.BookTitle,
		); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}
