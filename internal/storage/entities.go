package storage

import "time"

// UserSummary is the public part of a user profile
type UserSummary struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// User is a full user profile without the password hash
type User struct {
	UserSummary
	JoinAt      time.Time `json:"join_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// NewUser holds fields for inserting a user row; PasswordHash must already be hashed
type NewUser struct {
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
}

// Message is a stored message row
type Message struct {
	ID           int64      `json:"id"`
	FromUsername string     `json:"from_username"`
	ToUsername   string     `json:"to_username"`
	Body         string     `json:"body"`
	SentAt       time.Time  `json:"sent_at"`
	ReadAt       *time.Time `json:"read_at"`
}

// MessageDetail is a message joined with both participants
type MessageDetail struct {
	ID       int64       `json:"id"`
	Body     string      `json:"body"`
	SentAt   time.Time   `json:"sent_at"`
	ReadAt   *time.Time  `json:"read_at"`
	FromUser UserSummary `json:"from_user"`
	ToUser   UserSummary `json:"to_user"`
}

// Correspondence is a message as seen from one participant, the other one is embedded.
// Exactly one of FromUser and ToUser is set.
type Correspondence struct {
	ID       int64        `json:"id"`
	Body     string       `json:"body"`
	SentAt   time.Time    `json:"sent_at"`
	ReadAt   *time.Time   `json:"read_at"`
	FromUser *UserSummary `json:"from_user,omitempty"`
	ToUser   *UserSummary `json:"to_user,omitempty"`
}

// ReadReceipt is returned after marking a message as read
type ReadReceipt struct {
	ID     int64     `json:"id"`
	ReadAt time.Time `json:"read_at"`
}
