package domain

import "time"

type AssetType string

const (
	AssetImage AssetType = "image"
	AssetFile  AssetType = "file"
)

type Asset struct {
	ID        string    `json:"id,omitempty"`
	Prompt    string    `json:"prompt"`
	Type      AssetType `json:"type"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	UserID    string    `json:"userId,omitempty"`
}
