package models

import "time"

// User is an account row. Password holds the bcrypt hash, never plaintext.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Password  string
	Address   string
	Phone     string
	Title     string
	Bio       string
	ImageURL  string
	Enabled   bool
	NotLocked bool
	UsingMFA  bool
	CreatedAt time.Time
}

// FullName joins first and last name for greetings in outbound mail.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
