package dto

import "pdf-chat-be/internal/entity"

type ChatRequest struct {
	SessionId string `json:"session_id" validate:"max=256"`
	Question  string `json:"question" validate:"max=8000"`
}

type ChatResponse struct {
	SessionId string `json:"session_id"`
	Answer    string `json:"answer"`
}

type ClearSessionResponse struct {
	Message string `json:"message"`
}

type SessionHistoryResponse struct {
	SessionId string        `json:"session_id"`
	Turns     []entity.Turn `json:"turns"`
}
