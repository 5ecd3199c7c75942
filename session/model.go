package session

import "time"

// Profile is the cached user profile. The validate tags are the schema enforced on
// every server payload and on every record read back from storage.
type Profile struct {
	ID       int64   `json:"id" validate:"required"`
	Username string  `json:"username" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Role     string  `json:"role" validate:"required"`
	ImageURL *string `json:"image_url,omitempty"`
	Credits  *int64  `json:"credits,omitempty"`
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	if p.ImageURL != nil {
		v := *p.ImageURL
		out.ImageURL = &v
	}
	if p.Credits != nil {
		v := *p.Credits
		out.Credits = &v
	}
	return &out
}

// Record is a loaded session: the bearer token, the cached profile, and when the pair
// was last confirmed by the server.
type Record struct {
	Token       string
	Profile     *Profile
	ValidatedAt time.Time
}
