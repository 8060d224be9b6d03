package auth

type Role int

const (
	RoleStaff Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "staff"
}

// RoleFor maps a stored is_admin flag to a Role.
func RoleFor(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleStaff
}

// Identity is the authenticated requester of an operation. It is built from
// the session token for every request and passed explicitly.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"-"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Authenticated reports whether the identity carries a user id.
func (i Identity) Authenticated() bool { return i.ID != "" }
