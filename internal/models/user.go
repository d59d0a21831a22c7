package models

// Operator is a dashboard user allowed to sign in.
type Operator struct {
	Username     string `json:"username" mapstructure:"username"`
	PasswordHash string `json:"-" mapstructure:"password_hash"` // bcrypt
}
