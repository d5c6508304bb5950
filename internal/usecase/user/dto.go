package user

// CreateUserRequest is the schema a new user must satisfy before it is stored.
// The json tags name the fields in validation error details.
type CreateUserRequest struct {
	Name string `json:"name" validate:"required,max=100,safetext"`
	DNI  string `json:"dni" validate:"required,max=20,safetext"`
}

// CreateUserResponse represents the stored user after creation.
type CreateUserResponse struct {
	ID   int64
	Name string
	DNI  string
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// GetUserResponse represents the response payload for user details.
type GetUserResponse struct {
	ID   int64
	Name string
	DNI  string
}

// ListUsersResponse holds every stored user in storage order.
type ListUsersResponse struct {
	Users []User
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID   int64
	Name string
	DNI  string
}
