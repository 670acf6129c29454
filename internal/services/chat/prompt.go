package chat

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	// LengthGuard caps the size of an answer.
	LengthGuard = "Do not produce answers greater than 500 words"

	// MathGuard keeps math in delimiters the front-end renderer understands.
	MathGuard = "Use $...$ for inline math and $$...$$ for block math. Do not use square brackets [ ... ] for mathematical expressions. Remove any spaces between the closing $ and the content of the expression."

	defaultContextPrompt = `You are a helpful assistant. Use the following context from the uploaded document to answer the user's question. If the context doesn't contain enough information to answer the question, say so.

Context:
%s`

	customContextPrompt = `%s

Use the following context to answer the user's question:

%s`
)

// SystemPrompt joins a caller supplied system message with the retrieved
// document context.
type SystemPrompt struct {
	custom  string
	context string
}

// NewSystemPrompt keeps custom verbatim; only an empty message selects the
// default prompt.
func NewSystemPrompt(custom string) *SystemPrompt {
	return &SystemPrompt{custom: custom}
}

// SetContext replaces the retrieved context.
func (sp *SystemPrompt) SetContext(chunks []string) {
	sp.context = strings.Join(chunks, "\n\n")
}

func (sp *SystemPrompt) String() string {
	if sp.custom != "" {
		return fmt.Sprintf(customContextPrompt, sp.custom, sp.context)
	}
	return fmt.Sprintf(defaultContextPrompt, sp.context)
}

// PlainMessages builds the message list for plain chat: the caller's system
// message, the two guards, then the user message.
func PlainMessages(systemMessage, userMessage string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
		{Role: openai.ChatMessageRoleSystem, Content: LengthGuard},
		{Role: openai.ChatMessageRoleSystem, Content: MathGuard},
		{Role: openai.ChatMessageRoleUser, Content: userMessage},
	}
}

// RetrievalMessages builds the message list for document chat.
func RetrievalMessages(prompt *SystemPrompt, userMessage string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.String()},
		{Role: openai.ChatMessageRoleUser, Content: userMessage},
	}
}
