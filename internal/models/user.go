package models

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// User is the identity a connection is authenticated as. It is loaded once
// when the connection is set up and never refreshed.
type User struct {
	ID         string `json:"id" bson:"_id"`
	Username   string `json:"username" bson:"username"`
	FullName   string `json:"fullName" bson:"fullName"`
	Role       Role   `json:"role" bson:"role"`
	ClassLevel string `json:"classLevel,omitempty" bson:"classLevel,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// PersonalRoom is the room every connection of this user is subscribed to.
func PersonalRoom(userID string) string {
	return "user_" + userID
}

func RoleRoom(role Role) string {
	return "role_" + string(role)
}

func ClassRoom(classLevel string) string {
	return "class_" + classLevel
}

// ImplicitRooms returns the rooms a connection owned by u joins at admission.
func (u *User) ImplicitRooms() []string {
	rooms := []string{PersonalRoom(u.ID), RoleRoom(u.Role)}
	if u.ClassLevel != "" {
		rooms = append(rooms, ClassRoom(u.ClassLevel))
	}
	return rooms
}
