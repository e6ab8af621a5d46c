package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"gitea.com/go-chi/session"
	"github.com/blogem/planning-tools/authenticator"
	"github.com/blogem/planning-tools/config"
	"github.com/blogem/planning-tools/controllers"
	"github.com/blogem/planning-tools/database"
	"github.com/blogem/planning-tools/metrics"
	authmiddleware "github.com/blogem/planning-tools/middleware"
	"github.com/blogem/planning-tools/repositories"
	"github.com/blogem/planning-tools/scheduler"
	"github.com/blogem/planning-tools/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	// Load environment variables from .env file, if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load the env vars: %v", err)
	}

	cfg, err := config.Load("planning.yml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database and run migrations
	db, err := database.Initialize(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize repositories, metrics, services and controllers
	repos := repositories.NewRepositories(db)
	m := metrics.New(prometheus.DefaultRegisterer)
	srvs := services.NewServices(repos, cfg, m)
	ctrl := controllers.NewControllers(srvs, repos.Users)

	// Initialize OpenID Connect provider
	auth, err := authenticator.NewOpenIDProvider(cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize OpenID provider: %v", err)
	}

	r, err := setupRouter(ctrl, auth, cfg)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	archiver := scheduler.NewArchiver(cfg.History.ArchiveInterval(),
		srvs.Events.History(), srvs.Releases.History())

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("Planning tools starting on port %d (database: %s)", cfg.Server.Port, cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := archiver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

// setupRouter configures all routes
func setupRouter(ctrl *controllers.Controllers, auth authenticator.Provider, cfg *config.Config) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second)) // 60 second timeout for OAuth callbacks
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	// Session middleware
	sessionHandler, err := session.Sessioner(session.Options{
		Provider:       "memory",
		ProviderConfig: "",
		CookieName:     "planning_session",
		Secure:         cfg.Server.UseHTTPS,
		Gclifetime:     3600,
		Maxlifetime:    3600,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	r.Use(sessionHandler)

	// PUBLIC ROUTES (no authentication required)
	r.Get("/login", ctrl.Auth.Login(auth))
	r.Get("/callback", ctrl.Auth.Callback(auth))
	r.Get("/logout", ctrl.Auth.Logout)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "service": "planning-tools"}`)
	})
	r.Handle("/metrics", promhttp.Handler())

	// PROTECTED ROUTES (authentication required)
	r.Route("/api", func(r chi.Router) {
		r.Use(authmiddleware.RequireAuth)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", ctrl.Events.List)
			r.Post("/", ctrl.Events.Create)

			r.Route("/history", func(r chi.Router) {
				r.Get("/", ctrl.EventHistory.List)
				r.Delete("/", ctrl.EventHistory.Clear)
				r.Post("/{id}/rollback", ctrl.EventHistory.Rollback)
			})

			r.Get("/{id}", ctrl.Events.Get)
			r.Put("/{id}", ctrl.Events.Update)
			r.Delete("/{id}", ctrl.Events.Delete)
		})

		r.Route("/releases", func(r chi.Router) {
			r.Get("/", ctrl.Releases.List)
			r.Post("/", ctrl.Releases.Create)

			r.Route("/history", func(r chi.Router) {
				r.Get("/", ctrl.ReleaseHistory.List)
				r.Delete("/", ctrl.ReleaseHistory.Clear)
				r.Post("/{id}/rollback", ctrl.ReleaseHistory.Rollback)
			})

			r.Get("/{id}", ctrl.Releases.Get)
			r.Put("/{id}", ctrl.Releases.Update)
			r.Delete("/{id}", ctrl.Releases.Delete)
			r.Put("/{id}/squads/{number}", ctrl.Releases.UpdateSquad)
		})
	})

	return r, nil
}
