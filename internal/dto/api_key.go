package dto

import "time"

// CreateAPIKeyRequest defines payload for issuing an integration key.
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,min=3,max=100"`
}

// CreatedAPIKey is returned once, the only time the plaintext key is visible.
type CreatedAPIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Prefix    string    `json:"prefix"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
}
