package rbac

// Role constants
const (
	RoleClient = "client"
	RoleLawyer = "lawyer"
	RoleAdmin  = "admin"
)

func IsValidRole(role string) bool {
	return role == RoleClient || role == RoleLawyer
}

// Permissions for operations gated by role alone. Operations bound to a
// specific order or request party (respond, pay, submit, review, release,
// dispute) are authorized by participant identity in the services instead.
const (
	PermCreateRequest    = "create_request"
	PermResolveDispute   = "resolve_dispute"
	PermRefundOrder      = "refund_order"
	PermCancelOrder      = "cancel_order"
	PermSetPayoutAccount = "set_payout_account"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleClient: {},
	RoleLawyer: {
		PermCreateRequest, PermSetPayoutAccount,
	},
	RoleAdmin: {
		PermResolveDispute, PermRefundOrder, PermCancelOrder,
	},
}

func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}
