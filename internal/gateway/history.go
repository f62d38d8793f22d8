package gateway

// Turn is one prior message of the client-held conversation.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// DropLeadingNonUserTurns removes leading turns whose role is not "user".
// The provider's conversational API requires history to start with a user
// turn and alternate strictly; clients sometimes send a greeting from the
// assistant first. An all-assistant history normalizes to empty.
func DropLeadingNonUserTurns(history []Turn) []Turn {
	for i, t := range history {
		if t.Role == "user" {
			return history[i:]
		}
	}
	return nil
}
