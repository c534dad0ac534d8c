package model

// User is the admin account the session belongs to.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is what the login endpoint returns.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// PasswordChange is the body of the change-password call.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
