package domain

type (
	ConversationID string
	RoomName       string
)

// UserRoom is the broadcast group holding every open connection of one
// user, independent of conversation subscriptions.
func UserRoom(id UserID) RoomName {
	return RoomName("user:" + string(id))
}

// ConversationRoom is the broadcast group of connections currently
// subscribed to one conversation.
func ConversationRoom(id ConversationID) RoomName {
	return RoomName("conversation:" + string(id))
}
