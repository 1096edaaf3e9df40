// README: User aggregate and the closed Rider/Driver role enumeration.
package user

import "newber/internal/types"

const Collection = "users"

type Role string

const (
	RoleRider  Role = "Rider"
	RoleDriver Role = "Driver"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleRider, RoleDriver:
		return Role(s), true
	}
	return "", false
}

type User struct {
	ID        types.ID
	Username  string
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Role      Role
	Balance   types.Money
	// CurrentRequestID is empty when the user has no active ride request.
	CurrentRequestID types.ID
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u User) HasActiveRequest() bool {
	return u.CurrentRequestID != ""
}
