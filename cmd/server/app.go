package main

import (
	"net/http"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/internal/api"
	"github.com/diewo77/microloan/internal/config"
	"github.com/diewo77/microloan/internal/handlers"
	"github.com/diewo77/microloan/internal/identity"
	"github.com/diewo77/microloan/internal/metrics"
	"github.com/diewo77/microloan/internal/middleware"
	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/internal/moderation"
	"github.com/diewo77/microloan/internal/policy"
	"github.com/diewo77/microloan/internal/storage"
	"github.com/diewo77/microloan/internal/workflow"
	"github.com/diewo77/microloan/view"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Deps are the long-lived components the routes are built from.
type Deps struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Sessions   *auth.Manager
	API        *api.Client
	Roles      policy.RoleSource
	Provider   identity.Provider
	Moderation *moderation.Service
	// Uploader is nil when image uploads are not configured.
	Uploader storage.Uploader
}

// App is the root handler.
type App struct {
	router chi.Router
	gate   *policy.AuthGate
}

// NewApp builds the renderer, the guards and every route.
func NewApp(d Deps) (*App, error) {
	var ag *policy.AuthGate
	views, err := view.New(view.Options{
		Dir:   d.Config.App.TemplatesDir,
		Dev:   d.Config.App.Dev,
		Lang:  middleware.LangFrom,
		Theme: middleware.ThemeFrom,
		Can: func(r *http.Request, resource, action string) bool {
			return ag.CanRole(r.Context(), gate.Action(action), resource)
		},
		Defaults: handlers.Shell,
	}, d.Logger)
	if err != nil {
		return nil, err
	}
	pages := handlers.NewGuardPages(views)
	ag = policy.NewAuthGate(d.Roles, pages, d.Metrics)

	app := &App{router: chi.NewRouter(), gate: ag}
	app.setupRoutes(d, views, pages)
	return app, nil
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) setupRoutes(d Deps, views *view.Renderer, pages *handlers.GuardPages) {
	r := a.router
	ag := a.gate
	payment := workflow.PaymentPolicy{
		Fee:              d.Config.Payment.FeeAmount(),
		Currency:         d.Config.Payment.Currency,
		RequiresApproval: d.Config.Payment.RequiresApproval,
	}
	publicURL := d.Config.Identity.PublicURL

	loans := handlers.NewLoanHandler(d.API, ag, views, d.Logger)
	apply := handlers.NewApplyHandler(d.API, d.API, d.Moderation, ag, pages, views, d.Logger)
	mine := handlers.NewMyLoansHandler(d.Moderation, d.API, payment, publicURL, ag, pages, views, d.Logger)
	loanAdmin := handlers.NewLoanAdminHandler(d.Moderation, d.API, d.Uploader, ag, views, d.Logger)
	apps := handlers.NewApplicationsHandler(d.Moderation, ag, views, d.Logger)
	authH := handlers.NewAuthHandler(d.Provider, d.Sessions, d.API, ag, publicURL, d.Logger)
	account := handlers.NewAccountHandler(pages, views)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger, d.Metrics))
	r.Use(chimw.Recoverer)
	if d.Config.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(d.Config.Server.RequestTimeout))
	}
	if len(d.Config.Server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.Config.Server.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Infrastructure
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/health", handlers.Health)
	if d.Config.App.Metrics {
		r.Handle("/metrics", d.Metrics.Handler())
	}
	r.Handle("/static/*", view.Static())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Prefs)
		r.Use(d.Sessions.Middleware)
		r.Use(ag.ResolveRole)
		r.Use(handlers.ForwardToken)
		r.NotFound(account.NotFound)

		// ─────────────────────────────────────────────────────────────────
		// Public routes
		// ─────────────────────────────────────────────────────────────────
		r.Get("/", loans.Home)
		r.Get("/all-loans", loans.Catalog)
		r.Get("/loan-details/{id}", loans.Detail)
		r.Post("/loan-details/{id}/apply", apply.Start)
		r.Post("/theme", account.Theme)
		r.Get("/login", authH.Login)
		r.Get("/auth/callback", authH.Callback)
		r.Post("/auth/callback", authH.Callback)
		r.Post("/logout", authH.Logout)

		// ─────────────────────────────────────────────────────────────────
		// Signed-in routes
		// ─────────────────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(ag.RequireAuthenticated)
			r.Get("/apply-loan/{id}", apply.Form)
			r.Post("/apply-loan/{id}", apply.Submit)
			r.Get("/application-submitted", apply.Submitted)
			r.Get("/payment-success", mine.PaymentSuccess)
			r.Get("/dashboard", account.Dashboard)
			r.Get("/dashboard/profile", account.Profile)
		})

		// ─────────────────────────────────────────────────────────────────
		// Borrower dashboard
		// ─────────────────────────────────────────────────────────────────
		r.Route("/dashboard/my-loans", func(r chi.Router) {
			r.Use(ag.RequireRole(models.RoleUser))
			r.Get("/", mine.List)
			r.Get("/{id}/cancel", mine.ConfirmCancel)
			r.Post("/{id}/cancel", mine.Cancel)
			r.Post("/{id}/pay", mine.Pay)
			r.Get("/{id}/payment", mine.Payment)
		})

		// ─────────────────────────────────────────────────────────────────
		// Manager dashboard
		// ─────────────────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(ag.RequireRole(models.RoleManager))
			r.Get("/dashboard/add-loan", loanAdmin.New)
			r.Post("/dashboard/add-loan", loanAdmin.Create)
			mountLoanView(r, loanAdmin, handlers.ManageLoans)
			mountAppView(r, apps, handlers.PendingApplications)
			mountAppView(r, apps, handlers.ApprovedApplications)
			r.Get(handlers.PendingApplications.Base+"/{id}/approve", apps.ConfirmApprove)
			r.Post(handlers.PendingApplications.Base+"/{id}/approve", apps.Approve)
			r.Get(handlers.PendingApplications.Base+"/{id}/reject", apps.ConfirmReject)
			r.Post(handlers.PendingApplications.Base+"/{id}/reject", apps.Reject)
		})
		r.Group(func(r chi.Router) {
			r.Use(ag.RequireAnyRole(models.RoleManager, models.RoleAdmin))
			r.Get("/dashboard/update-loan/{id}", loanAdmin.Edit)
			r.Post("/dashboard/update-loan/{id}", loanAdmin.Update)
		})

		// ─────────────────────────────────────────────────────────────────
		// Admin dashboard
		// ─────────────────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(ag.RequireRole(models.RoleAdmin))
			mountLoanView(r, loanAdmin, handlers.AllLoans)
			mountAppView(r, apps, handlers.AllApplications)
		})
	})
}

func mountLoanView(r chi.Router, h *handlers.LoanAdminHandler, v handlers.LoanView) {
	r.Get(v.Base, h.List(v))
	r.Post(v.Base+"/{id}/visibility", h.ToggleVisibility(v))
	r.Get(v.Base+"/{id}/delete", h.ConfirmDelete(v))
	r.Post(v.Base+"/{id}/delete", h.Delete(v))
}

func mountAppView(r chi.Router, h *handlers.ApplicationsHandler, v handlers.AppView) {
	r.Get(v.Base, h.List(v))
	r.Get(v.Base+"/{id}", h.Detail(v))
}
