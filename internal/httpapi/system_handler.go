package httpapi

import (
	"net/http"
	"strings"

	"github.com/fjod/storefront/internal/genai"
	"github.com/fjod/storefront/internal/heartbeat"
)

const (
	assistantModeChat   = "chat"
	assistantModeExpand = "expand"
)

type AssistantRequestDTO struct {
	Prompt string `json:"prompt"`
	Mode   string `json:"mode"`
}

type AssistantResponseDTO struct {
	Reply string `json:"reply"`
}

func (s *Server) systemStatus(w http.ResponseWriter, r *http.Request) {
	report := heartbeat.Report{Status: heartbeat.StatusUpToDate}
	if s.Status != nil {
		report = s.Status.Report()
	}
	respondOK(w, http.StatusOK, report, "")
}

// askAssistant forwards the prompt to the text model. The model never
// surfaces an error; failures come back as a placeholder reply.
func (s *Server) askAssistant(w http.ResponseWriter, r *http.Request) {
	var req AssistantRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", "Enter a prompt first")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "prompt is empty", "Enter a prompt first")
		return
	}

	var instruction string
	switch req.Mode {
	case "", assistantModeChat:
		instruction = genai.ChatInstruction
	case assistantModeExpand:
		instruction = genai.ArchitectInstruction
	default:
		respondError(w, http.StatusBadRequest, "validation_error", "mode must be chat or expand", "Unknown assistant mode.")
		return
	}

	reply := s.Assistant.Generate(r.Context(), req.Prompt, instruction)
	respondOK(w, http.StatusOK, AssistantResponseDTO{Reply: reply}, "")
}
