package models

// ChatRequest is the body of a plain chat request.
type ChatRequest struct {
	SystemMessage string   `json:"system_message"`
	UserMessage   string   `json:"user_message" validate:"required"`
	Model         string   `json:"model,omitempty"`
	APIKey        string   `json:"api_key" validate:"required"`
	Temperature   *float32 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// RAGChatRequest is the body of a document chat request.
type RAGChatRequest struct {
	UserMessage   string `json:"user_message" validate:"required"`
	SystemMessage string `json:"system_message,omitempty"`
	APIKey        string `json:"api_key" validate:"required"`
}

// StreamRequest is the single frame a websocket client sends to start a
// chat. Mode selects plain or document chat.
type StreamRequest struct {
	Mode          string   `json:"mode" validate:"omitempty,oneof=plain retrieval"`
	SystemMessage string   `json:"system_message"`
	UserMessage   string   `json:"user_message" validate:"required"`
	Model         string   `json:"model,omitempty"`
	APIKey        string   `json:"api_key" validate:"required"`
	Temperature   *float32 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// ChatRequest converts the frame to a plain chat request.
func (r StreamRequest) ChatRequest() ChatRequest {
	return ChatRequest{
		SystemMessage: r.SystemMessage,
		UserMessage:   r.UserMessage,
		Model:         r.Model,
		APIKey:        r.APIKey,
		Temperature:   r.Temperature,
	}
}

// RAGChatRequest converts the frame to a document chat request.
func (r StreamRequest) RAGChatRequest() RAGChatRequest {
	return RAGChatRequest{
		UserMessage:   r.UserMessage,
		SystemMessage: r.SystemMessage,
		APIKey:        r.APIKey,
	}
}
