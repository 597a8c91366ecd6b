// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a participant in the pick'em pool.
//
// Name is the normalized form of DisplayName (trimmed, lower-cased) and is
// UNIQUE in the database, so "Alice" and " alice " are the same person.
//
// WHY AuthToken *string?
// Users created before tokens existed have no token at all. A nil pointer maps
// to SQL NULL, which keeps the UNIQUE index happy (NULLs never collide) and
// lets the admin backfill find exactly the users still missing one.
type User struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	AuthToken   *string   `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserWithToken is the admin view of a user, token included.
type UserWithToken struct {
	User
	Token *string `json:"token"`
}
