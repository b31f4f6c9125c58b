package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ilkoid/agribot/pkg/agent"
	"github.com/ilkoid/agribot/pkg/utils"
)

// chatBody: тело POST /chat.
type chatBody struct {
	Message  *string `json:"message"`
	Language string  `json:"language"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "AgriDirect AI Service is Running",
		"port":   s.port,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "ai-service",
		"status":  "healthy",
		"port":    s.port,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid request body: " + err.Error()})
		return
	}
	if body.Message == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "field 'message' is required"})
		return
	}

	resp := s.deps.Chat.Chat(r.Context(), agent.ChatRequest{
		Message:  *body.Message,
		Language: languageOrAuto(body.Language),
		Token:    bearerToken(r),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatImage(w http.ResponseWriter, r *http.Request) {
	if s.deps.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(2*s.deps.MaxUploadBytes))
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Detail: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid multipart form: " + err.Error()})
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			utils.Warn("Failed to remove multipart temp files", "error", err)
		}
	}()

	messages, ok := r.MultipartForm.Value["message"]
	if !ok || len(messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "field 'message' is required"})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "field 'image' is required"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "failed to read image: " + err.Error()})
		return
	}

	resp := s.deps.Chat.ChatWithImage(r.Context(), agent.ChatRequest{
		Message:  messages[0],
		Language: languageOrAuto(r.FormValue("language")),
		Token:    bearerToken(r),
	}, image)
	writeJSON(w, http.StatusOK, resp)
}

func languageOrAuto(lang string) string {
	if lang == "" {
		return agent.LanguageAuto
	}
	return lang
}
