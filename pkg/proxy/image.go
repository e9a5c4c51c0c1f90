package proxy

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// imageResponseTemplate is the fixed Markdown body returned for
// image-capable chat requests: prompt, model, and the proxied image link.
const imageResponseTemplate = "## 图片已生成成功\n### 提示词如下：%s\n### 绘图模型：%s\n### 绘图结果如下：\n![%s](%s)"

var completionNow = time.Now

// completionID derives a chatcmpl id from the current time, matching the
// legacy md5-of-timestamp scheme.
func completionID() string {
	seed := fmt.Sprintf("%.7f", float64(completionNow().UnixNano())/1e9)
	sum := md5.Sum([]byte(seed))
	return "chatcmpl-" + hex.EncodeToString(sum[:])[:16]
}

// forwardImageChat serves a chat-completion request whose model is
// image-capable: the latest user message becomes the generation prompt, and
// the result is rendered as a synthesized chat completion embedding the
// rewritten image URL.
func (s *Server) forwardImageChat(w http.ResponseWriter, r *http.Request, req chatRequest, credential, userAgent string) {
	prompt := lastUserPrompt(req.Messages)
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "no user prompt found", "invalid_request_error")
		return
	}

	raw, err := s.client.GenerateImage(r.Context(), req.Model, prompt, credential, userAgent)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	var result struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		writeError(w, http.StatusInternalServerError, "invalid upstream response", "api_error")
		return
	}
	imageURL := ""
	if len(result.Data) > 0 {
		imageURL = result.Data[0].URL
	}
	content := fmt.Sprintf(imageResponseTemplate, prompt, req.Model, prompt, s.rewriter.RewriteURL(imageURL))

	if req.Stream {
		s.writeSynthesizedStream(w, req.Model, content)
		return
	}
	writeJSON(w, http.StatusOK, openai.ChatCompletionResponse{
		ID:      completionID(),
		Object:  "chat.completion",
		Created: completionNow().Unix(),
		Model:   req.Model,
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{},
	})
}

// writeSynthesizedStream emits the whole content as one chunk, a stop
// chunk, and the [DONE] sentinel, in event-stream framing.
func (s *Server) writeSynthesizedStream(w http.ResponseWriter, model, content string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	id := completionID()
	created := completionNow().Unix()
	emit := func(chunk openai.ChatCompletionStreamResponse) {
		b, err := json.Marshal(chunk)
		if err != nil {
			return
		}
		_, _ = io.WriteString(w, "data: "+string(b)+"\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	}

	emit(openai.ChatCompletionStreamResponse{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []openai.ChatCompletionStreamChoice{{
			Index: 0,
			Delta: openai.ChatCompletionStreamChoiceDelta{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
		}},
	})
	emit(openai.ChatCompletionStreamResponse{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []openai.ChatCompletionStreamChoice{{
			Index:        0,
			FinishReason: openai.FinishReasonStop,
		}},
	})
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}
