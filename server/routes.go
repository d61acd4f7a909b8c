package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.RecoverMiddleware))

	// Preflight for every API route; CorsMiddleware answers it.
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(http.NotFound, s.APIMiddleware()...))

	// SIGN IN
	s.RegisterRouteHandler("POST "+RouteMagicLink, ChainMiddleware(s.MagicLinkHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteVerify, ChainMiddleware(s.VerifyHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	if s.oidc != nil {
		s.RegisterRouteHandler("GET "+RouteOIDCLogin, ChainMiddleware(s.OIDCLoginHandler(), s.APIMiddleware()...))
		s.RegisterRouteHandler("GET "+RouteOIDCCallback, ChainMiddleware(s.OIDCCallbackHandler(), s.APIMiddleware()...))
	}

	// SESSION
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.SessionHandler(), s.ConsoleMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteChoose, ChainMiddleware(s.ChooseHandler(), s.ConsoleMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteBack, ChainMiddleware(s.BackHandler(), s.ConsoleMiddleware()...))

	// TENANT VIEW
	s.RegisterRouteHandler("GET "+RouteStudents, ChainMiddleware(s.ListStudentsHandler(), s.ConsoleMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteStudents, ChainMiddleware(s.CreateStudentHandler(), s.ConsoleMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSchool, ChainMiddleware(s.SchoolProfileHandler(), s.ConsoleMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteSchool, ChainMiddleware(s.UpdateSchoolProfileHandler(), s.ConsoleMiddleware()...))

	// DIRECTORY VIEW
	s.RegisterRouteHandler("GET "+RouteTenants, ChainMiddleware(s.ListTenantsHandler(), s.ConsoleMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteTenants, ChainMiddleware(s.CreateTenantHandler(), s.ConsoleMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteTenantToggle, ChainMiddleware(s.ToggleTenantHandler(), s.ConsoleMiddleware()...))
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":           "ok",
			"console_sessions": s.ConsoleSessions(),
		})
	}
}
