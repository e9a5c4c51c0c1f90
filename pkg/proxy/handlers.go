package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/charmbracelet/log"
)

const maxRequestBody = 8 << 20

type chatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	snap, err := s.pool.Models(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleChatCompletions classifies the request by the resolved model's
// capability flags and dispatches: image generation first, audio second,
// plain text otherwise. First match wins when a model carries several flags.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", "invalid_request_error")
		return
	}
	defer r.Body.Close()

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", "invalid_request_error")
		return
	}

	snap, err := s.pool.Models(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	model := snap.Find(req.Model)
	if model == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("model %s not found", req.Model), "invalid_request_error")
		return
	}

	credential, userAgent, err := s.pool.Acquire(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	switch {
	case model.Image:
		s.forwardImageChat(w, r, req, credential, userAgent)
	case model.Audio:
		s.forwardChat(w, r, body, req.Stream, credential, userAgent, true)
	default:
		s.forwardChat(w, r, body, req.Stream, credential, userAgent, false)
	}
}

// forwardChat relays a chat-completion body verbatim. Audio responses get
// their media links rewritten; plain text passes through untouched.
func (s *Server) forwardChat(w http.ResponseWriter, r *http.Request, body []byte, stream bool, credential, userAgent string, audio bool) {
	resp, err := s.client.ChatCompletion(r.Context(), body, credential, userAgent)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		writeError(w, resp.StatusCode, strings.TrimSpace(string(b)), "upstream_error")
		return
	}

	if stream {
		var rewrite func(string) string
		if audio {
			rewrite = s.rewriter.RewriteContent
		}
		if err := transcodeStream(w, resp.Body, rewrite); err != nil {
			log.Debug("stream ended", "err", err)
		}
		return
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upstream response", "api_error")
		return
	}
	if audio {
		b = s.rewriteChatContent(b)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// rewriteChatContent runs the first choice's message content through the
// media rewriter, leaving the rest of the payload byte-identical.
func (s *Server) rewriteChatContent(body []byte) []byte {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return body
	}
	choices, _ := payload["choices"].([]any)
	if len(choices) == 0 {
		return body
	}
	choice, _ := choices[0].(map[string]any)
	message, _ := choice["message"].(map[string]any)
	if message == nil {
		return body
	}
	content, _ := message["content"].(string)
	if content == "" {
		return body
	}
	message["content"] = s.rewriter.RewriteContent(content)
	out, err := json.Marshal(payload)
	if err != nil {
		return body
	}
	return out
}

func (s *Server) handleImageGenerations(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", "invalid_request_error")
		return
	}
	defer r.Body.Close()

	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", "invalid_request_error")
		return
	}
	if req.Model == "" {
		req.Model = "flux.1-kontext-pro"
	}

	credential, userAgent, err := s.pool.Acquire(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	raw, err := s.client.GenerateImage(r.Context(), req.Model, req.Prompt, credential, userAgent)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeError(w, http.StatusInternalServerError, "invalid upstream response", "api_error")
		return
	}
	if data, ok := payload["data"].([]any); ok {
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if u, ok := m["url"].(string); ok && u != "" {
				m["url"] = s.rewriter.RewriteURL(u)
			}
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

// messageText extracts the text of a message content that is either a plain
// string or a multimodal part list.
func messageText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return text
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &parts); err != nil {
		return ""
	}
	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// lastUserPrompt scans the message list from the end for the most recent
// user-authored message.
func lastUserPrompt(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messageText(messages[i].Content)
		}
	}
	return ""
}
