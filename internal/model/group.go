package model

import "time"

// Group is a named set of users formed for comparison.
// Membership is a set: no duplicates and no ordering semantics.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GroupDetail is a group together with its member profiles.
type GroupDetail struct {
	Group
	Members []User `json:"members"`
}
