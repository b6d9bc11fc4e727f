package contract

import "pdf-chat-be/internal/entity"

// SessionStore keeps per-session conversation turns in memory.
type SessionStore interface {
	GetHistory(sessionID string) []entity.Turn
	AppendTurn(sessionID string, turn entity.Turn)
	// AppendExchange appends the user question and the assistant answer as
	// one step so that concurrent exchanges on a session never interleave.
	AppendExchange(sessionID, question, answer string)
	Clear(sessionID string)
}
