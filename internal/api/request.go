package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/lending"
	"github.com/lalith-99/bookshare/internal/middleware"
	"github.com/lalith-99/bookshare/internal/reviews"
	"go.uber.org/zap"
)

type RequestHandler struct {
	engine  *lending.Engine
	reviews *reviews.Service
	logger  *zap.Logger
}

func NewRequestHandler(engine *lending.Engine, reviews *reviews.Service, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{engine: engine, reviews: reviews, logger: logger}
}

// List handles GET /v1/requests?role=requester|owner
func (h *RequestHandler) List(c *gin.Context) {
	role, err := lending.ParseRole(c.Query("role"))
	if err != nil {
		respondError(c, h.logger, err, "failed to list requests")
		return
	}
	list, err := h.engine.List(c.Request.Context(), middleware.GetUserID(c), role)
	if err != nil {
		respondError(c, h.logger, err, "failed to list requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": list})
}

type createRequestRequest struct {
	BookID     uuid.UUID `json:"book_id" binding:"required"`
	Message    string    `json:"message"`
	BorrowDays int       `json:"borrow_days"`
}

// Create handles POST /v1/requests
func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BookID == uuid.Nil {
		badRequest(c, "book_id required")
		return
	}
	view, err := h.engine.Create(c.Request.Context(), middleware.GetUserID(c), lending.CreateInput{
		BookID:     req.BookID,
		Message:    req.Message,
		BorrowDays: req.BorrowDays,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to create request")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": view})
}

// Get handles GET /v1/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.engine.Get(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": view})
}

type transitionRequest struct {
	Action string `json:"action" binding:"required"`
}

// Transition handles PATCH /v1/requests/:id {"action": "..."}
func (h *RequestHandler) Transition(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "action required")
		return
	}
	view, err := h.engine.Transition(c.Request.Context(), middleware.GetUserID(c), id, lending.Action(req.Action))
	if err != nil {
		respondError(c, h.logger, err, "failed to update request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": view})
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Review handles POST /v1/requests/:id/reviews
func (h *RequestHandler) Review(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	review, err := h.reviews.Create(c.Request.Context(), middleware.GetUserID(c), reviews.CreateInput{
		BorrowRequestID: id,
		Rating:          req.Rating,
		Comment:         req.Comment,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to create review")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review": review})
}
