package model

import (
	"time"
)

type User struct {
	ID             int64      `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	FirstName      string     `db:"first_name" json:"firstName"`
	Surname        string     `db:"surname" json:"surname"`
	MiddleInitial  *string    `db:"middle_initial" json:"middleInitial,omitempty"`
	HospitalName   string     `db:"hospital_name" json:"hospitalName"`
	HospitalRoomNo string     `db:"hospital_room_no" json:"hospitalRoomNo"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	LastLogin      *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	IsActive       bool       `db:"is_active" json:"isActive"`
}

// FullName renders "First M. Surname", omitting the middle initial when absent.
func (u *User) FullName() string {
	if u.MiddleInitial != nil && *u.MiddleInitial != "" {
		return u.FirstName + " " + *u.MiddleInitial + ". " + u.Surname
	}
	return u.FirstName + " " + u.Surname
}

type CreateUserParams struct {
	Username       string
	PasswordHash   string
	FirstName      string
	Surname        string
	MiddleInitial  *string
	HospitalName   string
	HospitalRoomNo string
}

type UpdateProfileParams struct {
	FirstName      string
	Surname        string
	MiddleInitial  *string
	HospitalName   string
	HospitalRoomNo string
}

// LoginSession is a browser session backing the dashboard cookie.
type LoginSession struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"userId"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateLoginSessionParams struct {
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
}
