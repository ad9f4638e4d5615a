// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic   SecurityLevel = iota // No authentication
	SecurityIdentity                      // Verified identity token required
	SecurityAdmin                         // Admin session token required
)

// EndpointSecurityConfig maps HTTP route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Requester routes - Public
	"SubmitQueueEntry": SecurityPublic,
	"GetQueueCount":    SecurityPublic,
	"ListQueueEntries": SecurityPublic,
	"LiveQueueFeed":    SecurityPublic,
	"Health":           SecurityPublic,
	"Metrics":          SecurityPublic,

	// Admin session - Identity Protected
	"CreateAdminSession": SecurityIdentity,

	// Admin workflow - Admin Protected
	"ListAllEntries":         SecurityAdmin,
	"ListPendingEntries":     SecurityAdmin,
	"ListApprovedEntries":    SecurityAdmin,
	"ApproveEntry":           SecurityAdmin,
	"DeclineEntry":           SecurityAdmin,
	"ResendEntryEmail":       SecurityAdmin,
	"UpdateEntryPosition":    SecurityAdmin,
	"CallEntry":              SecurityAdmin,
	"ListEntryNotifications": SecurityAdmin,
	"UpdateEntryStatus":      SecurityAdmin,
	"RemoveEntry":            SecurityAdmin,
	"RecalculatePositions":   SecurityAdmin,
	"RegenerateAdminCode":    SecurityAdmin,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAdmin
}
