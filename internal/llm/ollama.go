package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
)

// OllamaProvider talks to a local Ollama daemon over its /api/chat endpoint.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider creates a provider for the Ollama daemon at baseURL.
func NewOllamaProvider(baseURL string, model string, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// ollamaChat is both the request and the response body of /api/chat; the
// fields each direction does not use stay empty.
type ollamaChat struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages,omitempty"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`

	Message         Message `json:"message"`
	DoneReason      string  `json:"done_reason,omitempty"`
	PromptEvalCount int     `json:"prompt_eval_count,omitempty"`
	EvalCount       int     `json:"eval_count,omitempty"`
	Error           string  `json:"error,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	errb := oops.In("ollama").With("model", p.model)

	in := ollamaChat{Model: req.Model, Messages: req.Messages}
	if in.Model == "" {
		in.Model = p.model
	}
	if req.Temperature != 0 || req.MaxTokens != 0 {
		in.Options = &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, errb.Wrapf(err, "encoding request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errb.Wrapf(err, "building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errb.Wrapf(err, "calling %s", p.baseURL)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errb.Wrapf(err, "reading response")
	}

	var out ollamaChat
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return nil, errb.With("status", resp.StatusCode).Errorf("ollama returned %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, errb.Wrapf(decodeErr, "decoding response")
	}

	return &CompletionResponse{
		Content:      out.Message.Content,
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		Model:        out.Model,
		FinishReason: out.DoneReason,
	}, nil
}
