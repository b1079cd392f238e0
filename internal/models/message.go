package models

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage is one entry of a paper conversation. Streaming is set while a
// model reply is still receiving fragments.
type ChatMessage struct {
	Role      ChatRole `json:"role"`
	Text      string   `json:"text"`
	Streaming bool     `json:"isStreaming,omitempty"`
}
