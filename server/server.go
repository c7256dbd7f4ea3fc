package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-session-gateway/csrf"
	"github.com/jrsteele09/go-session-gateway/identity"
	"github.com/jrsteele09/go-session-gateway/internal/config"
	"github.com/jrsteele09/go-session-gateway/manager"
	"github.com/jrsteele09/go-session-gateway/monitor"
	"github.com/jrsteele09/go-session-gateway/onboarding"
	"github.com/jrsteele09/go-session-gateway/server/authflowrepo"
	"github.com/rs/zerolog/log"
)

// Dependencies are the services the HTTP surface drives. All of them are
// constructed once by the caller and shared across requests.
type Dependencies struct {
	Sessions   *manager.Manager
	CSRF       *csrf.Service
	Onboarding *onboarding.Service
	Monitor    *monitor.Monitor

	// Login enables the browser login routes when set. Flows defaults to
	// an in-memory repo.
	Login identity.Redirector
	Flows authflowrepo.Repo
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	validate *validator.Validate

	sessions    *manager.Manager
	csrf        *csrf.Service
	onboarding  *onboarding.Service
	monitor     *monitor.Monitor
	login       identity.Redirector
	flows       authflowrepo.Repo
	adminSecret []byte
}

func New(config config.Config, deps Dependencies) (*Server, error) {
	if deps.Sessions == nil || deps.CSRF == nil || deps.Onboarding == nil || deps.Monitor == nil {
		return nil, fmt.Errorf("[Server New] sessions, csrf, onboarding and monitor services are required")
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      config,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		sessions:    deps.Sessions,
		csrf:        deps.CSRF,
		onboarding:  deps.Onboarding,
		monitor:     deps.Monitor,
		login:       deps.Login,
		flows:       deps.Flows,
		adminSecret: []byte(config.GetAdminJWTSecret()),
	}
	s.env = config.GetEnv()
	if s.flows == nil {
		s.flows = authflowrepo.NewInMemoryRepo(authflowrepo.DefaultSize, authflowrepo.DefaultTTL)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Debug().Str("method", method).Str("path", path).Msg("route registered")
	}
}
