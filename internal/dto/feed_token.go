package dto

import "time"

// IssueFeedTokenRequest asks for a subscribe URL for one apartment feed.
type IssueFeedTokenRequest struct {
	Scope    string `json:"scope" validate:"required,oneof=availability bookings calendar *"`
	TTLHours int    `json:"ttlHours" validate:"omitempty,min=1,max=87600"`
}

// FeedTokenResponse carries the signed token and the URL calendar clients subscribe to.
type FeedTokenResponse struct {
	Token        string    `json:"token"`
	Scope        string    `json:"scope"`
	SubscribeURL string    `json:"subscribeUrl"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
