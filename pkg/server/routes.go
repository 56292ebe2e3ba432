package server

import (
	"net"
	"net/http"
	"strconv"
	"time"

	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/riandyrn/otelchi"

	"github.com/getzep/entitylink/internal"
	"github.com/getzep/entitylink/pkg/auth"
	"github.com/getzep/entitylink/pkg/models"
)

var log = internal.GetLogger()

const (
	ReadHeaderTimeout = 5 * time.Second
	RouterName        = "entitylink"
)

// Create creates a new HTTP server with the given app state
func Create(appState *models.AppState) (*http.Server, error) {
	router, err := setupRouter(appState)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(
		appState.Config.Server.Host,
		strconv.Itoa(appState.Config.Server.Port),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}, nil
}

// @title			entitylink API
// @version		0.x
// @license.name	Apache 2.0
// @license.url	http://www.apache.org/licenses/LICENSE-2.0.html
// @BasePath		/
// @schemes		http https
func setupRouter(appState *models.AppState) (*chi.Mux, error) {
	router := chi.NewRouter()
	router.Use(httpLogger.Logger("router", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(SendVersion)
	router.Use(middleware.Heartbeat("/healthz"))

	if size := appState.Config.Server.MaxRequestSize; size > 0 {
		router.Use(middleware.RequestSize(size))
	}

	router.Use(otelchi.Middleware(
		RouterName,
		otelchi.WithChiRoutes(router),
		otelchi.WithRequestMethodInSpanName(true),
	))

	// the status probe stays public even when auth is required
	router.Get("/", GetStatusHandler)

	var authMiddleware []func(http.Handler) http.Handler
	if appState.Config.Auth.Required {
		log.Info("JWT authentication required")
		verifier, err := auth.JWTVerifier(appState.Config)
		if err != nil {
			return nil, err
		}
		authMiddleware = append(authMiddleware, verifier, jwtauth.Authenticator)
	}

	router.Group(func(r chi.Router) {
		r.Use(authMiddleware...)
		r.Post("/", AnnotateHandler(appState))
	})

	return router, nil
}
