package domain

import "time"

type Preferences struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
}

type StorageStats struct {
	TotalSaved int64 `json:"totalSaved"`
}

type UserProfile struct {
	ID           string       `json:"id,omitempty"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Role         string       `json:"role"`
	MemberSince  time.Time    `json:"memberSince,omitzero"`
	Preferences  Preferences  `json:"preferences"`
	StorageStats StorageStats `json:"storageStats"`
}
