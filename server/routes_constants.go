package server

// Route path constants
// All development backend routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - exempt from bearer handling on the client
	RouteAuthLogin = "/api/auth/login"

	// API Routes - require a bearer token
	RouteAccount        = "/api/account"
	RouteAccountSession = "/api/account/session"

	// Health
	RouteHealth = "/api/health"
)
