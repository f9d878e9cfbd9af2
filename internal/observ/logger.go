package observ

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a JSON logger in production and a console logger
// elsewhere. An unparsable level falls back to info.
func NewLogger(env, level string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.InitialFields = map[string]any{"service": "bookshare"}

	return config.Build()
}

// Field keys shared by the request logger and the handlers, so one grep
// finds every line about a request or a user.
const (
	KeyRequestID = "request_id"
	KeyUserID    = "user_id"
)

func RequestID(id string) zap.Field {
	return zap.String(KeyRequestID, id)
}

// UserID renders uuid.Nil as an empty string so anonymous requests are easy
// to filter out.
func UserID(id uuid.UUID) zap.Field {
	if id == uuid.Nil {
		return zap.String(KeyUserID, "")
	}
	return zap.String(KeyUserID, id.String())
}
