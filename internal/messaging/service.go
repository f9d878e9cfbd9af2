// Package messaging stores direct messages between two users and tracks
// which of them the receiver has seen.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
	"go.uber.org/zap"
)

const MaxContentLength = 4000

type Service struct {
	store  repository.Store
	logger *zap.Logger
}

func NewService(store repository.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

type SendInput struct {
	ReceiverID      uuid.UUID
	Content         string
	BookID          *uuid.UUID
	BorrowRequestID *uuid.UUID
}

// Send stores a message from senderID. A tagged book must exist; a tagged
// borrow request must exist and involve the sender.
func (s *Service) Send(ctx context.Context, senderID uuid.UUID, in SendInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.InvalidArgument("content is required")
	}
	if len([]rune(content)) > MaxContentLength {
		return nil, apperr.InvalidArgument(fmt.Sprintf("content must be at most %d characters", MaxContentLength))
	}
	if in.ReceiverID == uuid.Nil {
		return nil, apperr.InvalidArgument("receiver_id is required")
	}
	if in.ReceiverID == senderID {
		return nil, apperr.InvalidArgument("you cannot message yourself")
	}

	repos := s.store.Repos()
	receiver, err := repos.Users.GetByID(ctx, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, apperr.NotFound("receiver not found")
	}
	if in.BookID != nil {
		book, err := repos.Books.GetByID(ctx, *in.BookID)
		if err != nil {
			return nil, err
		}
		if book == nil {
			return nil, apperr.NotFound("book not found")
		}
	}
	if in.BorrowRequestID != nil {
		req, err := repos.Requests.GetByID(ctx, *in.BorrowRequestID)
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, apperr.NotFound("borrow request not found")
		}
		if senderID != req.OwnerID && senderID != req.RequesterID {
			return nil, apperr.Forbidden("you are not a party to this request")
		}
	}

	msg := &models.Message{
		SenderID:        senderID,
		ReceiverID:      in.ReceiverID,
		BookID:          in.BookID,
		BorrowRequestID: in.BorrowRequestID,
		Content:         content,
	}
	if err := repos.Messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

type Thread struct {
	With     models.UserSummary   `json:"with"`
	Messages []models.MessageView `json:"messages"`
}

// Thread returns the conversation with counterpartID, oldest first, and
// marks the counterpart's unread messages to the caller as read. The
// returned messages carry their read flags from before the update, so a
// client can highlight what was new. The caller's own messages and other
// threads are never touched. The book filter narrows the listing only.
func (s *Service) Thread(ctx context.Context, callerID, counterpartID uuid.UUID, bookID *uuid.UUID) (*Thread, error) {
	if counterpartID == uuid.Nil {
		return nil, apperr.InvalidArgument("with is required")
	}

	var out Thread
	var marked int64
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		other, err := r.Users.GetByID(ctx, counterpartID)
		if err != nil {
			return err
		}
		if other == nil {
			return apperr.NotFound("user not found")
		}
		out.With = other.Summary()

		out.Messages, err = r.Messages.ListThread(ctx, callerID, counterpartID, bookID)
		if err != nil {
			return err
		}
		marked, err = r.Messages.MarkRead(ctx, callerID, counterpartID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if marked > 0 {
		s.logger.Debug("messages marked read",
			zap.String("user_id", callerID.String()),
			zap.String("sender_id", counterpartID.String()),
			zap.Int64("count", marked),
		)
	}
	return &out, nil
}

// Inbox lists one entry per counterpart, most recent conversation first.
func (s *Service) Inbox(ctx context.Context, callerID uuid.UUID) ([]models.Conversation, error) {
	return s.store.Repos().Messages.ListConversations(ctx, callerID)
}

// UnreadCount is zero for anonymous callers.
func (s *Service) UnreadCount(ctx context.Context, callerID uuid.UUID) (int, error) {
	if callerID == uuid.Nil {
		return 0, nil
	}
	return s.store.Repos().Messages.CountUnread(ctx, callerID)
}
