package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"github.com/tenantcore/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Tenant context keys
const (
	TenantIDKey           = "tenant_id"
	TenantRequestKey      = "tenant_request_context"
	TenantRepositoriesKey = "tenant_repositories"
)

// tenantUnavailableMessage is shared by every resolution failure so responses do not reveal
// whether a tenant exists, is suspended, or belongs to someone else
const tenantUnavailableMessage = "Tenant is not available"

// errHandlerFailed rolls back the tenant transaction after the handler already answered
var errHandlerFailed = errors.New("handler reported failure")

// TenantBinder is the resolve_and_bind entry point
type TenantBinder interface {
	ResolveAndBind(ctx context.Context, ri tenancy.RequestIdentity, body func(ctx context.Context, rc *tenancy.RequestContext, repos tenancy.TenantRepositories) error) error
}

// TenantBindingConfig holds configuration for the tenant binding middleware
type TenantBindingConfig struct {
	Binder    TenantBinder
	SkipPaths []string
	Logger    *zap.Logger
}

// TenantBinding resolves the request's tenant and runs the rest of the chain inside its namespace.
// The namespace transaction commits when the handler succeeds and rolls back when it records
// an error or answers with a 5xx.
// It must run after JWTAuthMiddlewareWithConfig.
func TenantBinding(cfg TenantBindingConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		principal, _ := GetPrincipal(c)
		ri := tenancy.RequestIdentity{Host: RequestHost(c), Principal: principal}

		bodyRan := false
		err := cfg.Binder.ResolveAndBind(c.Request.Context(), ri,
			func(ctx context.Context, rc *tenancy.RequestContext, repos tenancy.TenantRepositories) error {
				bodyRan = true
				outer := c.Request
				c.Request = c.Request.WithContext(ctx)
				c.Set(TenantIDKey, rc.TenantID().String())
				c.Set(TenantRequestKey, rc)
				c.Set(TenantRepositoriesKey, repos)

				c.Next()

				// Repositories are only valid inside this scope
				c.Set(TenantRepositoriesKey, nil)
				c.Request = outer
				if len(c.Errors) > 0 || c.Writer.Status() >= http.StatusInternalServerError {
					return errHandlerFailed
				}
				return nil
			})

		switch {
		case err == nil, errors.Is(err, errHandlerFailed):
			return
		case bodyRan:
			// Commit failed after the handler answered; the client may have seen success
			if c.Writer.Written() {
				logger.L(c.Request.Context()).Error("Tenant transaction failed after response was written", zap.Error(err))
				return
			}
			abortWithTenantError(c, err)
		default:
			abortWithTenantError(c, err)
		}
	}
}

func abortWithTenantError(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeUnauthorized, "Authentication required", requestID))
	case errors.Is(err, shared.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeTenantUnavailable, tenantUnavailableMessage, requestID))
	case errors.Is(err, shared.ErrSuspended), errors.Is(err, shared.ErrCrossTenantAccess):
		c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeTenantUnavailable, tenantUnavailableMessage, requestID))
	case errors.Is(err, context.DeadlineExceeded):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInternal, "Tenant resolution timed out", requestID))
	default:
		logger.L(c.Request.Context()).Error("Tenant binding failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInternal, "An unexpected error occurred", requestID))
	}
}

// RequestHost returns the normalized Host header
func RequestHost(c *gin.Context) string {
	return identity.NormalizeHost(c.Request.Host)
}

// GetRequestContext returns the resolved tenant of the request
func GetRequestContext(c *gin.Context) (*tenancy.RequestContext, bool) {
	if v, ok := c.Get(TenantRequestKey); ok {
		if rc, ok := v.(*tenancy.RequestContext); ok {
			return rc, true
		}
	}
	return nil, false
}

// GetTenantRepositories returns the storage of the bound namespace.
// It is only set while TenantBinding's scope is open.
func GetTenantRepositories(c *gin.Context) (tenancy.TenantRepositories, bool) {
	if v, ok := c.Get(TenantRepositoriesKey); ok {
		if repos, ok := v.(tenancy.TenantRepositories); ok && repos != nil {
			return repos, true
		}
	}
	return nil, false
}
