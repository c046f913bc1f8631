package models

// Role is an organization's relationship to a transaction.
type Role string

const (
	RoleConsumer Role = "consumer"
	RoleSubject  Role = "subject"
	RoleHolder   Role = "holder"
	RoleNone     Role = "none"
)

// Valid reports whether r names a party role.
func (r Role) Valid() bool {
	switch r {
	case RoleConsumer, RoleSubject, RoleHolder:
		return true
	}
	return false
}
