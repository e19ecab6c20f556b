package engine

import (
	"context"

	sessiondomain "storefront/sessioncore/internal/session/domain"
)

// Presentation destinations produced by the default routing table.
const (
	DestinationOnboarding      = "/onboarding"
	DestinationPendingApproval = "/pending-approval"
	DestinationMerchantHome    = "/merchant/home"
	DestinationStoreDashboard  = "/store/dashboard"
	DestinationAdminConsole    = "/admin/console"
)

// RoutingEvaluator maps a resolution verdict to the presentation destination.
type RoutingEvaluator interface {
	Destination(ctx context.Context, verdict sessiondomain.Verdict) (string, error)
}

// FallbackDestination is the built-in routing table. Anything it does not recognize goes to onboarding.
func FallbackDestination(v sessiondomain.Verdict) string {
	switch v.State {
	case sessiondomain.StatePendingApproval:
		return DestinationPendingApproval
	case sessiondomain.StateAuthenticated:
		switch v.Role {
		case sessiondomain.RoleMerchant:
			return DestinationMerchantHome
		case sessiondomain.RoleStoreOwner:
			return DestinationStoreDashboard
		case sessiondomain.RoleAdmin:
			return DestinationAdminConsole
		}
	}
	return DestinationOnboarding
}
