package sessions

import "time"

// Session is a refresh-token session for a staff user.
type Session struct {
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	UserID       string    `bson:"userId" json:"userId"`
	UserAgent    string    `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}
