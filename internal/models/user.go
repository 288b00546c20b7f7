package models

// UserProfile is the document stored under users/{userId}.
type UserProfile struct {
	ID                   string   `json:"id" bson:"_id"`
	DisplayName          string   `json:"displayName" bson:"displayName"`
	DisplayNameLowercase string   `json:"displayName_lowercase,omitempty" bson:"displayName_lowercase,omitempty"`
	FCMToken             string   `json:"fcmToken,omitempty" bson:"fcmToken,omitempty"`
	Friends              []string `json:"friends,omitempty" bson:"friends,omitempty"`
}

// HasDeviceToken reports whether the user can receive push notifications.
func (p UserProfile) HasDeviceToken() bool {
	return p.FCMToken != ""
}

// Friend request states.
const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestRejected = "rejected"
)

// FriendRequest is the document stored under friendRequests/{requestId}.
type FriendRequest struct {
	ID         string `json:"id" bson:"_id"`
	SenderID   string `json:"senderId" bson:"senderId"`
	ReceiverID string `json:"receiverId" bson:"receiverId"`
	Status     string `json:"status" bson:"status"`
}
