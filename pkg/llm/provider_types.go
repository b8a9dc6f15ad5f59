package llm

import "encoding/json"

type providerMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

type providerChatChoice struct {
	Index        int             `json:"index"`
	Message      providerMessage `json:"message"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

type providerChatResponse struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Created int64                `json:"created"`
	Model   string               `json:"model"`
	Choices []providerChatChoice `json:"choices"`
	Usage   *Usage               `json:"usage,omitempty"`
}

type providerErrorResponse struct {
	Error struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// code returns the error code as a string; providers send either a string
// or a number.
func (p providerErrorResponse) code() string {
	raw := p.Error.Code
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
