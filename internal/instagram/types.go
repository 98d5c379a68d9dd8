package instagram

// User is the profile returned for the signed-in account. Business accounts
// also carry the profile picture and follower count.
type User struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	AccountType       string `json:"account_type,omitempty"`
	MediaCount        int    `json:"media_count"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
	FollowersCount    int    `json:"followers_count,omitempty"`
}

// Media is one post.
type Media struct {
	ID           string `json:"id"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Permalink    string `json:"permalink"`
	Caption      string `json:"caption,omitempty"`
	Timestamp    string `json:"timestamp"`
}

type Cursors struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

type Paging struct {
	Cursors Cursors `json:"cursors"`
	Next    string  `json:"next,omitempty"`
}

// MediaPage is one page of the media edge.
type MediaPage struct {
	Data   []Media `json:"data"`
	Paging *Paging `json:"paging,omitempty"`
}

// Download is a fetched media file ready to be sent back to the browser.
type Download struct {
	ContentType string
	Filename    string
	Body        []byte
}
