package middleware

import (
	"bytes"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Header names for gateway callback authentication
	HeaderCallbackToken     = "X-Callback-Token"
	HeaderCallbackSignature = "X-Callback-Signature"
	HeaderRequestID         = "X-Request-ID"

	// Context keys
	CtxClaims    = "claims"
	CtxRequestID = "request_id"
	CtxRawBody   = "raw_body"
)

// CallbackAuth authenticates gateway callbacks before any parsing: the shared
// token is compared in constant time and, when a signature secret is
// configured, X-Callback-Signature must be the HMAC of the raw body.
func CallbackAuth(
	token string,
	signatureSecret string,
	sigSvc ports.SignatureService,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) gin.HandlerFunc {
	reject := func(c *gin.Context, err *apperror.AppError, reason string) {
		log.Warn().
			Str("client_ip", c.ClientIP()).
			Str("reason", reason).
			Bool("security", true).
			Msg("callback rejected")
		if auditSvc != nil {
			auditSvc.Log(c.Request.Context(), &domain.AuditLog{
				ID:           uuid.New(),
				Action:       domain.AuditActionCallbackRejected,
				ResourceType: "callback",
				IPAddress:    c.ClientIP(),
				Details:      `{"reason":"` + reason + `"}`,
				CreatedAt:    time.Now().UTC(),
			})
		}
		response.Error(c, err)
		c.Abort()
	}

	return func(c *gin.Context) {
		got := c.GetHeader(HeaderCallbackToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			reject(c, apperror.ErrInvalidCallbackToken(), "token")
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		c.Set(CtxRawBody, bodyBytes)

		if signatureSecret != "" {
			signature := c.GetHeader(HeaderCallbackSignature)
			if signature == "" || !sigSvc.Verify(signatureSecret, string(bodyBytes), signature) {
				reject(c, apperror.ErrInvalidSignature(), "signature")
				return
			}
		}

		c.Next()
	}
}

// JWTAuth validates the bearer token and stores the caller's claims.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || !strings.EqualFold(authHeader[:7], "Bearer ") {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(authHeader[7:])
		if err != nil {
			log.Debug().Err(err).Msg("bearer token rejected")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxClaims, claims)
		c.Next()
	}
}

// RequireRole lets through only callers holding one of roles.
func RequireRole(roles ...ports.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		response.Error(c, apperror.ErrForbidden())
		c.Abort()
	}
}

// Claims returns the authenticated caller set by JWTAuth.
func Claims(c *gin.Context) (*ports.TokenClaims, bool) {
	v, exists := c.Get(CtxClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*ports.TokenClaims)
	return claims, ok
}

// RequestID propagates X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		if id, ok := c.Get(CtxRequestID); ok {
			event = event.Interface("request_id", id)
		}
		if claims, ok := Claims(c); ok {
			event = event.Str("subject", claims.Subject.String()).Str("role", string(claims.Role))
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
