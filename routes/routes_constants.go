package routes

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Public Routes
	RouteHome     = "/"
	RouteFeatures = "/features"
	RoutePlans    = "/plans"
	RouteShare    = "/share"

	// Auth-only Routes - shown only to logged-out users
	RouteSignIn         = "/signin"
	RouteSignUp         = "/signup"
	RouteResetPassword  = "/resetPassword"
	RouteForgotPassword = "/forgot-password"
	RouteVerifiedEmail  = "/verifiedEmail"

	// User-protected Routes
	RouteChat      = "/chat"
	RouteDashboard = "/dashboard"

	// Admin-protected Routes
	RouteAdmin          = "/admin"
	RouteAdminUsers     = "/admin/users"
	RouteAdminIngestion = "/admin/ingestion"
	RouteAdminConfig    = "/admin/config"
)

// Default landing targets after a session state change.
const (
	LandingAuthenticated = RouteChat
	LandingAnonymous     = RouteSignIn
)
