package auth

const (
	RoleStudent = "STUDENT"
	RoleSupport = "SUPPORT"
	RoleAdmin   = "ADMIN"
)

// Capability predicates guard the mutating operations of the purchase core.
// Refund requests and progress writes check them inside the service, so a
// new transport cannot bypass them; checkout, refund decisions and coupon
// administration check them at the handler boundary.

// CanCheckout: any authenticated user may buy for themselves.
func CanCheckout(identity Identity, buyerUserID int64) bool {
	return identity.UserID > 0 && identity.UserID == buyerUserID
}

// CanRequestRefund: only the purchase owner may open a refund request.
func CanRequestRefund(identity Identity, purchaseUserID int64) bool {
	return identity.UserID > 0 && identity.UserID == purchaseUserID
}

// CanDecideRefund: approving or rejecting refunds is staff-only.
func CanDecideRefund(identity Identity) bool {
	return identity.Role == RoleAdmin || identity.Role == RoleSupport
}

// CanManageCoupons: coupon administration is admin-only.
func CanManageCoupons(identity Identity) bool {
	return identity.Role == RoleAdmin
}

// CanTrackProgress: progress rows belong to the authenticated user.
func CanTrackProgress(identity Identity, progressUserID int64) bool {
	return identity.UserID > 0 && identity.UserID == progressUserID
}
