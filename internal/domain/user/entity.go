package user

// User represents a person registered in the system.
type User struct {
	ID   int64  // ID is assigned by the store and never changes
	Name string // Name is the full name of the user
	DNI  string // DNI is the national identification number, unique across users
}
