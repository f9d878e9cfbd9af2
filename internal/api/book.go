package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/catalog"
	"github.com/lalith-99/bookshare/internal/lending"
	"github.com/lalith-99/bookshare/internal/middleware"
	"github.com/lalith-99/bookshare/internal/models"
	"go.uber.org/zap"
)

type BookHandler struct {
	catalog *catalog.Service
	lending *lending.Engine
	logger  *zap.Logger
}

func NewBookHandler(catalog *catalog.Service, lending *lending.Engine, logger *zap.Logger) *BookHandler {
	return &BookHandler{catalog: catalog, lending: lending, logger: logger}
}

// List handles GET /v1/books?q=&genre=&status=&owner_id=&lat=&lng=
func (h *BookHandler) List(c *gin.Context) {
	filter := models.BookFilter{
		Query:  c.Query("q"),
		Genre:  c.Query("genre"),
		Status: models.BookStatus(c.Query("status")),
	}
	if owner := c.Query("owner_id"); owner != "" {
		id, err := uuid.Parse(owner)
		if err != nil {
			badRequest(c, "invalid owner_id")
			return
		}
		filter.OwnerID = id
	}

	var origin *catalog.Origin
	if lat, lng := c.Query("lat"), c.Query("lng"); lat != "" && lng != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		ln, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			badRequest(c, "invalid lat or lng")
			return
		}
		origin = &catalog.Origin{Lat: la, Lng: ln}
	}

	books, err := h.catalog.List(c.Request.Context(), filter, origin)
	if err != nil {
		respondError(c, h.logger, err, "failed to list books")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}

type createBookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	CoverURL      string `json:"cover_url"`
	Description   string `json:"description"`
	Genre         string `json:"genre"`
	Condition     string `json:"condition"`
	Language      string `json:"language"`
	MaxBorrowDays int    `json:"max_borrow_days"`
	// BorrowDays is the older name for MaxBorrowDays.
	BorrowDays int `json:"borrow_days"`
}

// Create handles POST /v1/books
func (h *BookHandler) Create(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	days := req.MaxBorrowDays
	if days == 0 {
		days = req.BorrowDays
	}
	book, err := h.catalog.Create(c.Request.Context(), middleware.GetUserID(c), catalog.CreateInput{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		CoverURL:      req.CoverURL,
		Description:   req.Description,
		Genre:         req.Genre,
		Condition:     req.Condition,
		Language:      req.Language,
		MaxBorrowDays: days,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to create book")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"book": book})
}

// Lookup handles GET /v1/books/lookup?isbn=
func (h *BookHandler) Lookup(c *gin.Context) {
	info, err := h.catalog.Lookup(c.Request.Context(), c.Query("isbn"))
	if err != nil {
		respondError(c, h.logger, err, "isbn lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": info})
}

// Get handles GET /v1/books/:id
func (h *BookHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	book, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get book")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": book})
}

type updateBookRequest struct {
	Title         *string            `json:"title"`
	Author        *string            `json:"author"`
	Description   *string            `json:"description"`
	Genre         *string            `json:"genre"`
	Condition     *string            `json:"condition"`
	Language      *string            `json:"language"`
	CoverURL      *string            `json:"cover_url"`
	MaxBorrowDays *int               `json:"max_borrow_days"`
	Status        *models.BookStatus `json:"status"`
}

// Update handles PATCH /v1/books/:id
func (h *BookHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	book, err := h.catalog.Update(c.Request.Context(), middleware.GetUserID(c), id, models.BookPatch{
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		Genre:         req.Genre,
		Condition:     req.Condition,
		Language:      req.Language,
		CoverURL:      req.CoverURL,
		MaxBorrowDays: req.MaxBorrowDays,
		Status:        req.Status,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to update book")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": book})
}

// Delete handles DELETE /v1/books/:id
func (h *BookHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, h.logger, err, "failed to delete book")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Requests handles GET /v1/books/:id/requests, the owner's view of every
// request ever made for the book.
func (h *BookHandler) Requests(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	list, err := h.lending.ListForBook(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to list requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": list})
}
