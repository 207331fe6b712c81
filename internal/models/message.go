package models

// Role identifies the author of a chat turn sent to the model.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// HistoryMessage is one turn of the client-held conversation history.
type HistoryMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Role maps the client sender label onto a model role.
func (m HistoryMessage) Role() Role {
	if m.Sender == string(RoleUser) {
		return RoleUser
	}
	return RoleAssistant
}

// Usage is the token accounting returned by a completion call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
