package webhook

import "encoding/json"

// ObjectInstagram is the only notification object accepted.
const ObjectInstagram = "instagram"

// Subscribed change fields
const (
	FieldComments      = "comments"
	FieldMentions      = "mentions"
	FieldMedia         = "media"
	FieldStoryInsights = "story_insights"
)

// SubscribedFields is the field list requested when subscribing.
var SubscribedFields = []string{FieldComments, FieldMentions, FieldMedia, FieldStoryInsights}

// Notification is the body of a webhook delivery.
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes for one Instagram account.
type Entry struct {
	ID      string   `json:"id"`
	Time    int64    `json:"time"`
	Changes []Change `json:"changes"`
}

// Change is a single field update. Value is kept raw since its shape depends
// on the field.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}
