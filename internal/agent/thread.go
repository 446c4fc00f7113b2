package agent

// ThreadID builds the composite key the checkpointing framework uses to
// group a conversation's state. It is a plain underscore join with no
// escaping, so identifiers containing "_" can collide with each other.
func ThreadID(userID, chatID string) string {
	return userID + "_" + chatID
}
