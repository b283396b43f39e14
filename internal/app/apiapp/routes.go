package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/learnado/backend/internal/config"
	authsvc "github.com/learnado/backend/internal/services/auth"
	catalogsvc "github.com/learnado/backend/internal/services/catalog"
	couponsvc "github.com/learnado/backend/internal/services/coupons"
	entsvc "github.com/learnado/backend/internal/services/entitlements"
	ordersvc "github.com/learnado/backend/internal/services/orders"
	paymentsvc "github.com/learnado/backend/internal/services/payments"
	progresssvc "github.com/learnado/backend/internal/services/progress"
	refundsvc "github.com/learnado/backend/internal/services/refunds"
	"github.com/learnado/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	JWTManager         *authsvc.JWTManager
	CatalogService     *catalogsvc.Service
	CouponService      *couponsvc.Service
	OrderService       *ordersvc.Service
	PaymentService     *paymentsvc.Service
	RefundService      *refundsvc.Service
	EntitlementService *entsvc.Service
	ProgressService    *progresssvc.Service
	Logger             *zap.Logger
	Config             config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	catalogHandler := handlers.NewCatalogHandler(deps.CatalogService)
	checkoutHandler := handlers.NewCheckoutHandler(deps.OrderService)
	paymentsHandler := handlers.NewPaymentsHandler(deps.PaymentService, deps.Config.Provider.WebhookSecret)
	refundsHandler := handlers.NewRefundsHandler(deps.RefundService)
	progressHandler := handlers.NewProgressHandler(deps.ProgressService)
	entitlementsHandler := handlers.NewEntitlementsHandler(deps.EntitlementService)
	couponsHandler := handlers.NewCouponsHandler(deps.CouponService, deps.CatalogService)

	authMW := AuthMiddleware(deps.JWTManager, deps.Logger)
	refundStaffMW := RequireRole(authsvc.RoleAdmin, authsvc.RoleSupport)
	couponAdminMW := RequireRole(authsvc.RoleAdmin)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/courses/{id}", catalogHandler.GetCourse)

		r.With(authMW).Post("/checkout", checkoutHandler.Checkout)
		r.With(authMW).Get("/purchases/{id}", checkoutHandler.GetPurchase)

		// The provider authenticates with its shared secret, not a user token.
		r.Post("/payments/webhook", paymentsHandler.Webhook)

		r.With(authMW).Post("/refunds", refundsHandler.Request)
		r.With(authMW).Get("/refunds/{id}", refundsHandler.Get)
		r.With(authMW, refundStaffMW).Post("/refunds/{id}/approve", refundsHandler.Approve)
		r.With(authMW, refundStaffMW).Post("/refunds/{id}/reject", refundsHandler.Reject)

		r.With(authMW).Post("/progress", progressHandler.Track)
		r.With(authMW).Post("/progress/complete", progressHandler.Complete)
		r.With(authMW).Get("/progress/{lesson_id}", progressHandler.Get)

		r.With(authMW).Get("/entitlements", entitlementsHandler.List)
		r.With(authMW).Get("/entitlements/{course_id}", entitlementsHandler.Check)

		r.With(authMW).Post("/coupons/quote", couponsHandler.Quote)
		r.With(authMW, couponAdminMW).Post("/coupons", couponsHandler.Create)
		r.With(authMW, couponAdminMW).Post("/coupons/{id}/deactivate", couponsHandler.Deactivate)
	})
}
