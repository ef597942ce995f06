// Package routes holds the static classification of application paths by the
// authentication level they require. The table is the single source for route
// gating decisions; nothing else decides per-callsite whether a path needs
// admin rights.
package routes

import "strings"

// Class is the authentication level a path requires.
type Class string

const (
	// ClassPublic routes are reachable by anyone.
	ClassPublic Class = "public"
	// ClassAuthOnly routes (sign-in/up) are reachable only when logged out.
	ClassAuthOnly Class = "auth_only"
	// ClassUser routes require an authenticated session.
	ClassUser Class = "user"
	// ClassAdmin routes require an authenticated admin session.
	ClassAdmin Class = "admin"
)

var table = map[string]Class{
	RouteHome:     ClassPublic,
	RouteFeatures: ClassPublic,
	RoutePlans:    ClassPublic,
	RouteShare:    ClassPublic,

	RouteSignIn:         ClassAuthOnly,
	RouteSignUp:         ClassAuthOnly,
	RouteResetPassword:  ClassAuthOnly,
	RouteForgotPassword: ClassAuthOnly,
	RouteVerifiedEmail:  ClassAuthOnly,

	RouteChat:      ClassUser,
	RouteDashboard: ClassUser,

	RouteAdmin:          ClassAdmin,
	RouteAdminUsers:     ClassAdmin,
	RouteAdminIngestion: ClassAdmin,
	RouteAdminConfig:    ClassAdmin,
}

// Classify returns the class of a path. Sub-paths inherit the class of the
// nearest registered ancestor, so "/admin/users/42" gates like "/admin/users".
// Unknown paths are user-protected: gating fails closed, not open.
func Classify(path string) Class {
	path = normalize(path)
	for {
		if class, ok := table[path]; ok {
			return class
		}
		idx := strings.LastIndex(path, "/")
		if idx <= 0 {
			return ClassUser
		}
		path = path[:idx]
	}
}

func normalize(path string) string {
	if path == "" {
		return RouteHome
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
