package server

// Route path constants
const (
	// Sign in and out
	RouteMagicLink    = "/auth/magic-link"
	RouteVerify       = "/auth/verify"
	RouteOIDCLogin    = "/auth/oidc/login"
	RouteOIDCCallback = "/auth/oidc/callback"
	RouteLogout       = "/auth/logout"

	// Session state
	RouteSession = "/console/session"
	RouteChoose  = "/console/choose"
	RouteBack    = "/console/back"

	// Tenant view
	RouteStudents = "/console/students"
	RouteSchool   = "/console/school"

	// Directory view
	RouteTenants      = "/console/tenants"
	RouteTenantToggle = "/console/tenants/{id}/toggle"

	RouteHealth = "/healthz"
)

const (
	consoleSessionCookie = "console_session"
	consoleTokenCookie   = "console_token"
)
