package models

// Identity is the canonical external identity resolved from an access token.
// ExternalID always refers to an Instagram-capable account.
type Identity struct {
	ExternalID  string
	DisplayName string
	AvatarURL   *string
	AccountType string
	MediaCount  int
}

// Session is the authenticated context carried between requests in a signed
// token. It is created once per sign-in and never updated in place.
type Session struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
	Name        string `json:"name,omitempty"`
}

// CandidatePage is a Facebook Page the user administers, with the Instagram
// Business Account linked to it, if any. It never leaves the resolver.
type CandidatePage struct {
	ID                       string                    `json:"id"`
	Name                     string                    `json:"name"`
	InstagramBusinessAccount *InstagramBusinessAccount `json:"instagram_business_account,omitempty"`
}

// InstagramBusinessAccount is the Business/Creator account linked to a Page.
type InstagramBusinessAccount struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profile_picture_url"`
}
