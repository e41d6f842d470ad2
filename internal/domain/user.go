package domain

// Role identifies the kind of account making a request.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePassenger, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID   string
	Role Role
}

// Passenger represents a registered passenger.
type Passenger struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Driver represents a registered bus driver.
type Driver struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	LicenseNumber string
}
