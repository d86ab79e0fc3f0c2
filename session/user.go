package session

// Role of a user account as reported by the API.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserRecord is the cached copy of the remote user. The remote API stays
// the authoritative source; this copy only exists for fast cold-start
// rehydration and may be stale between refreshes.
type UserRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
