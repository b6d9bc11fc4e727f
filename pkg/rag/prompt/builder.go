package prompt

import (
	"strings"

	"pdf-chat-be/pkg/llm"
)

// GroundedInstruction keeps the model on the retrieved excerpts.
const GroundedInstruction = "You are a helpful assistant. Answer questions based ONLY on the context below. " +
	"If the answer isn't in the context, say \"I don't know based on this document.\""

const contextSeparator = "\n\n"

// GroundedBuilder assembles the message list sent to the completion model:
// one system message carrying the instruction and the retrieved context,
// then the prior turns in order, then the new question.
type GroundedBuilder struct {
	instruction string
	contexts    []string
	history     []llm.Message
	question    string
}

func NewGroundedBuilder(question string, contexts []string, history []llm.Message) *GroundedBuilder {
	return &GroundedBuilder{
		instruction: GroundedInstruction,
		contexts:    contexts,
		history:     history,
		question:    question,
	}
}

// WithInstruction replaces the default system instruction.
func (b *GroundedBuilder) WithInstruction(instruction string) *GroundedBuilder {
	if instruction != "" {
		b.instruction = instruction
	}
	return b
}

func (b *GroundedBuilder) Build() []llm.Message {
	messages := make([]llm.Message, 0, len(b.history)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: b.systemContent(),
	})
	messages = append(messages, b.history...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: b.question,
	})
	return messages
}

func (b *GroundedBuilder) systemContent() string {
	var sb strings.Builder
	sb.WriteString(b.instruction)
	sb.WriteString("\n\nContext:\n")
	sb.WriteString(strings.Join(b.contexts, contextSeparator))
	return sb.String()
}
