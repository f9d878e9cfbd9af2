package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/apperr"
	"go.uber.org/zap"
)

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindConflict, apperr.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error","code"} for err. Internal errors are logged
// and reported with the generic fallback message.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		logger.Error(fallback, zap.Error(err), zap.String("path", c.FullPath()))
		_ = c.Error(err)
	}
	c.JSON(statusOf(kind), gin.H{
		"error": apperr.MessageOf(err, fallback),
		"code":  kind.String(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": apperr.KindInvalidArgument.String()})
}

// uuidParam parses a path parameter and answers 400 when it is not a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID parses s, treating "" as absent.
func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, errors.New("invalid id " + s)
	}
	return &id, nil
}
