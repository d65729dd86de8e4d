package domain

// Role defines the permission level of a control API user
type Role string

const (
	RoleAdmin  Role = "admin"  // Trigger refreshes and backfills
	RoleViewer Role = "viewer" // Read snapshot and status
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleViewer
}

// APIUser is a control API account. Accounts come from configuration;
// passwords are stored as bcrypt hashes.
type APIUser struct {
	Username     string `json:"username" yaml:"username"`
	PasswordHash string `json:"-" yaml:"password_hash"`
	Role         Role   `json:"role" yaml:"role"`
}
