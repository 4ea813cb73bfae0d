package convo

import "strings"

const (
	newConversationSummary = "This is a new conversation."
	summaryTopicCount      = 3
)

// BuildContextMessages assembles the user's live history plus the incoming
// message into the turn sequence sent after the system persona.
func (s *Store) BuildContextMessages(userID, currentMessage, displayName string) []ChatTurn {
	return BuildTurns(s.History(userID), currentMessage, displayName)
}

// BuildTurns prefixes user turns with the speaker's name so a completion API
// without named participants can still tell who is talking. Assistant turns
// pass through unchanged; any other role is dropped.
func BuildTurns(history []Message, currentMessage, displayName string) []ChatTurn {
	turns := make([]ChatTurn, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			turns = append(turns, ChatTurn{Role: RoleUser, Content: speakerPrefix(displayName, msg.Content)})
		case RoleAssistant:
			turns = append(turns, ChatTurn{Role: RoleAssistant, Content: msg.Content})
		}
	}
	return append(turns, ChatTurn{Role: RoleUser, Content: speakerPrefix(displayName, currentMessage)})
}

// ContextSummary lists the user's last few messages, or a fixed sentence
// when there is no history.
func (s *Store) ContextSummary(userID string) string {
	history := s.History(userID)
	if len(history) == 0 {
		return newConversationSummary
	}
	var topics []string
	for i := len(history) - 1; i >= 0 && len(topics) < summaryTopicCount; i-- {
		if history[i].Role == RoleUser {
			topics = append(topics, history[i].Content)
		}
	}
	for i, j := 0, len(topics)-1; i < j; i, j = i+1, j-1 {
		topics[i], topics[j] = topics[j], topics[i]
	}
	return "Recent topics: " + strings.Join(topics, ", ")
}

func speakerPrefix(name, content string) string {
	return name + ": " + content
}
