package handler

import (
	"time"

	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// caller returns the authenticated claims or AUTH_003.
func caller(c *gin.Context) (*ports.TokenClaims, error) {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil, apperror.ErrInvalidToken()
	}
	return claims, nil
}

// callerOwner maps the caller onto the wallet it owns. Admins own none.
func callerOwner(c *gin.Context) (domain.Owner, error) {
	claims, err := caller(c)
	if err != nil {
		return domain.Owner{}, err
	}
	owner, ok := claims.Owner()
	if !ok {
		return domain.Owner{}, apperror.ErrForbidden()
	}
	return owner, nil
}

// pathID parses a UUID path parameter.
func pathID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid " + name)
	}
	return id, nil
}

// requestID takes the client's retry key from the body or the Idempotency-Key header.
func requestID(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.GetHeader("Idempotency-Key")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
