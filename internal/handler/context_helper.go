package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-health-api/internal/middleware"
	"github.com/noah-isme/sma-health-api/internal/models"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
	"github.com/noah-isme/sma-health-api/pkg/response"
)

const (
	defaultPageNum  = 1
	defaultPageSize = 10
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func principalFromContext(c *gin.Context) models.Principal {
	return models.PrincipalFromClaims(claimsFromContext(c))
}

// pageFromQuery reads pageNum and pageSize. Unparseable values become zero so
// the service rejects them with a validation error.
func pageFromQuery(c *gin.Context) models.PageRequest {
	return models.PageRequest{
		PageNum:  intQuery(c, "pageNum", defaultPageNum),
		PageSize: intQuery(c, "pageSize", defaultPageSize),
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
