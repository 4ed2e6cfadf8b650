package core

// Higher roles include lower roles.
type Role int

const (
	NoRole Role = 0
	Read   Role = 100
	Write  Role = 300 // create and modify contained resources
	Admin  Role = 500 // edit members and roles of this resource
)

func (r Role) String() string {
	switch r {
	case NoRole:
		return "none"
	case Read:
		return "read"
	case Write:
		return "write"
	case Admin:
		return "admin"
	}
	return "unknown"
}

func (r Role) Valid() bool {
	switch r {
	case NoRole, Read, Write, Admin:
		return true
	default:
		return false
	}
}

// ParseRole returns NoRole for an empty string, so callers can use it
// for both "set role" and "remove role" requests.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "":
		return NoRole, true
	case "read":
		return Read, true
	case "write":
		return Write, true
	case "admin":
		return Admin, true
	}
	return NoRole, false
}
