package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tenantcore/backend/internal/interfaces/http/handler"
)

// Handlers are the endpoint handlers mounted by Mount
type Handlers struct {
	Health       *handler.HealthHandler
	Tenant       *handler.TenantHandler
	Subscription *handler.SubscriptionHandler
	Webhook      *handler.BillingWebhookHandler
	Admin        *handler.AdminHandler
}

// Guards are the access middleware applied per route group
type Guards struct {
	// Authenticate validates the bearer token and stores the principal
	Authenticate gin.HandlerFunc
	// BindTenant runs resolve_and_bind around the handler
	BindTenant gin.HandlerFunc
	// RequireAdmin refuses principals without the platform_admin claim
	RequireAdmin gin.HandlerFunc
}

// Mount registers every route of the tenant core API on engine.
//
//	/health, /ready                      probes, unauthenticated
//	/api/v1/webhooks/billing             signature-authenticated billing deliveries
//	/api/v1/public/tenant-status         host-addressed status, unauthenticated
//	/api/v1/tenants                      authenticated, not tenant-bound
//	/api/v1/tenant/...                   authenticated and bound to the request's tenant
//	/api/v1/admin/...                    platform administrators only
func Mount(engine *gin.Engine, h Handlers, g Guards, opts ...RouterOption) *Router {
	engine.GET("/health", h.Health.Live)
	engine.GET("/ready", h.Health.Ready)

	r := NewRouter(engine, opts...)

	public := NewGroup("public", "")
	public.POST("/webhooks/billing", h.Webhook.Handle)
	public.GET("/public/tenant-status", h.Tenant.PublicStatus)

	tenants := NewGroup("authenticated", "/tenants", g.Authenticate)
	tenants.POST("", h.Tenant.Create)

	bound := NewGroup("tenant", "/tenant", g.Authenticate, g.BindTenant)
	bound.GET("", h.Tenant.Current)
	bound.GET("/subscription", h.Subscription.Get)

	admin := NewGroup("platform_admin", "/admin", g.Authenticate, g.RequireAdmin)
	admin.Group("/tenants").
		GET("", h.Admin.ListTenants).
		GET("/:id", h.Admin.GetTenant).
		DELETE("/:id", h.Admin.DeleteTenant).
		POST("/:id/suspend", h.Admin.SuspendTenant).
		POST("/:id/reactivate", h.Admin.ReactivateTenant).
		PUT("/:id/slug", h.Admin.RenameSlug).
		GET("/:id/domains", h.Admin.ListDomains).
		POST("/:id/domains", h.Admin.AddDomain).
		DELETE("/:id/domains/:host", h.Admin.RemoveDomain).
		POST("/:id/members", h.Admin.AddMember)
	admin.Group("/billing/events").
		GET("", h.Admin.ListBillingEvents).
		GET("/:event_id", h.Admin.GetBillingEvent).
		POST("/:event_id/reprocess", h.Admin.ReprocessBillingEvent)
	admin.Group("/principals").
		POST("/:id/revoke-sessions", h.Admin.RevokeSessions)

	r.Add(public, tenants, bound, admin)
	r.Setup()
	return r
}
