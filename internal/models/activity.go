package models

import "time"

// Creator identifies the user who created an activity.
type Creator struct {
	UserID      string `json:"userId" bson:"userId"`
	DisplayName string `json:"displayName" bson:"displayName"`
}

// Activity is a scheduled social activity with a participant set and a chat.
type Activity struct {
	ID                   string     `json:"id" bson:"_id"`
	Title                string     `json:"title" bson:"title"`
	TitleLowercase       string     `json:"title_lowercase,omitempty" bson:"title_lowercase,omitempty"`
	Participants         []string   `json:"participants" bson:"participants"`
	CreatedBy            Creator    `json:"createdBy" bson:"createdBy"`
	DateTime             time.Time  `json:"dateTime" bson:"dateTime"`
	Archived             *bool      `json:"archived,omitempty" bson:"archived,omitempty"`
	LastMessageTimestamp *time.Time `json:"lastMessageTimestamp,omitempty" bson:"lastMessageTimestamp,omitempty"`
}

// IsArchived reports whether the archived flag is set and true.
func (a Activity) IsArchived() bool {
	return a.Archived != nil && *a.Archived
}

// Participant is a document under activities/{activityId}/participants/{userId}.
type Participant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}
