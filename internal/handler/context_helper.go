package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/warga-api/internal/middleware"
	"github.com/noah-isme/warga-api/internal/models"
	appErrors "github.com/noah-isme/warga-api/pkg/errors"
	"github.com/noah-isme/warga-api/pkg/middleware/requestid"
	"github.com/noah-isme/warga-api/pkg/response"
)

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		RequestID: requestid.Value(c),
	}
}

// actorFromContext builds the acting user from JWT claims. It writes a 401 and returns
// false when the route was reached without authentication.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return models.Actor{
		UserID: claims.UserID,
		Role:   claims.Role,
		Name:   claims.FullName,
		Meta:   requestMeta(c),
	}, true
}

func bindError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
}
