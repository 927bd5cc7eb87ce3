package enums

// UserRole scopes what an authenticated caller may do.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = newSet("user role",
	UserRoleCustomer,
	UserRoleAdmin,
)

func (u UserRole) String() string { return string(u) }

func (u UserRole) IsValid() bool { return userRoles.has(u) }

func ParseUserRole(value string) (UserRole, error) { return userRoles.parse(value) }
