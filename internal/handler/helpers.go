package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lorebase/lorebase/internal/middleware"
	"github.com/lorebase/lorebase/internal/pkg/errcode"
	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
	"github.com/lorebase/lorebase/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err))
	switch {
	case appErr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	case appErr.IsInvalid(err):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrUnsupportedFile):
		response.Error(c, errcode.ErrInvalidFile, "unsupported file type")
	case errors.Is(err, appErr.ErrEmptyDocument):
		response.Error(c, errcode.ErrEmptyDocument, "document has no extractable text")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
