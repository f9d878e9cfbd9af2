package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/messaging"
	"github.com/lalith-99/bookshare/internal/middleware"
	"go.uber.org/zap"
)

type MessageHandler struct {
	svc    *messaging.Service
	logger *zap.Logger
}

func NewMessageHandler(svc *messaging.Service, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

// List handles GET /v1/messages. With ?with=<user id> (and optionally
// &book_id=) it returns that thread and marks it read; without it returns
// the inbox.
func (h *MessageHandler) List(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	with := c.Query("with")
	if with == "" {
		convs, err := h.svc.Inbox(c.Request.Context(), callerID)
		if err != nil {
			respondError(c, h.logger, err, "failed to list conversations")
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": convs})
		return
	}

	otherID, err := uuid.Parse(with)
	if err != nil {
		badRequest(c, "invalid with")
		return
	}
	bookID, err := optionalUUID(c.Query("book_id"))
	if err != nil {
		badRequest(c, "invalid book_id")
		return
	}
	thread, err := h.svc.Thread(c.Request.Context(), callerID, otherID, bookID)
	if err != nil {
		respondError(c, h.logger, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, thread)
}

type sendMessageRequest struct {
	ReceiverID      uuid.UUID  `json:"receiver_id"`
	Content         string     `json:"content"`
	BookID          *uuid.UUID `json:"book_id"`
	BorrowRequestID *uuid.UUID `json:"borrow_request_id"`
}

// Send handles POST /v1/messages
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	msg, err := h.svc.Send(c.Request.Context(), middleware.GetUserID(c), messaging.SendInput{
		ReceiverID:      req.ReceiverID,
		Content:         req.Content,
		BookID:          req.BookID,
		BorrowRequestID: req.BorrowRequestID,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to send message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Unread handles GET /v1/messages/unread. Anonymous callers get 0.
func (h *MessageHandler) Unread(c *gin.Context) {
	n, err := h.svc.UnreadCount(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to count messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}
