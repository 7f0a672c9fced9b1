package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/models"
	"github.com/inkwell-ai/chatcore/pkg/tokencount"
)

// ollamaProvider talks to a local Ollama server's OpenAI-incompatible
// /api/chat endpoint over bare HTTP, the same no-SDK shape the teacher uses
// for embeddings in pkg/memory/embedding/local.go and mirrored here in
// pkg/embedding/client.go's embedOllamaShape.
type ollamaProvider struct {
	log    zerolog.Logger
	client *http.Client
}

// NewOllama returns the adapter for a local Ollama instance. Ollama has no
// vision, tool-calling, or image-generation support in this module's wire
// contract.
func NewOllama(log zerolog.Logger) Provider {
	return &ollamaProvider{
		log:    log.With().Str("provider", "ollama").Logger(),
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *ollamaProvider) Name() string                      { return "ollama" }
func (p *ollamaProvider) TokenProvider() tokencount.Provider { return tokencount.ProviderOllama }
func (p *ollamaProvider) Capabilities() Capabilities         { return Capabilities{} }

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func (p *ollamaProvider) baseURL(cred Credential) string {
	if cred.BaseURL != "" {
		return strings.TrimRight(cred.BaseURL, "/")
	}
	return "http://localhost:11434"
}

func (p *ollamaProvider) buildRequest(params SendParams, stream bool) ollamaChatRequest {
	messages := make([]ollamaChatMessage, 0, len(params.Messages)+1)
	if params.SystemPrompt != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: params.SystemPrompt})
	}
	for _, m := range params.Messages {
		messages = append(messages, ollamaChatMessage{Role: string(m.Role), Content: m.Text})
	}
	options := map[string]any{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	return ollamaChatRequest{Model: params.Model, Messages: messages, Stream: stream, Options: options}
}

func (p *ollamaProvider) SendMessage(ctx context.Context, cred Credential, params SendParams) (SendResult, error) {
	if len(params.Tools) > 0 {
		return SendResult{}, errToolsUnsupported(p.Name())
	}
	var failed []FailedAttachment
	params.Messages, failed = FilterMessageAttachments(p.Capabilities(), params.Messages)
	body, err := json.Marshal(p.buildRequest(params, false))
	if err != nil {
		return SendResult{}, &chaterrors.NetworkError{Provider: p.Name(), Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL(cred)+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return SendResult{}, &chaterrors.NetworkError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return SendResult{}, &chaterrors.NetworkError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	var parsed ollamaChatResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&parsed); decErr != nil {
		return SendResult{}, &chaterrors.ProviderError{Provider: p.Name(), Status: resp.StatusCode, Detail: "malformed chat response"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{}, &chaterrors.ProviderError{Provider: p.Name(), Status: resp.StatusCode, Detail: parsed.Error}
	}

	return SendResult{
		Content:      parsed.Message.Content,
		FinishReason: "stop",
		Usage: Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		},
		Attachments: AttachmentResults{Failed: failed},
	}, nil
}

func (p *ollamaProvider) StreamMessage(ctx context.Context, cred Credential, params SendParams) (*StreamHandle, error) {
	if len(params.Tools) > 0 {
		return nil, errToolsUnsupported(p.Name())
	}
	var failed []FailedAttachment
	params.Messages, failed = FilterMessageAttachments(p.Capabilities(), params.Messages)
	streamCtx, cancel := context.WithCancel(ctx)
	chunks := make(chan Chunk, 32)

	go func() {
		defer close(chunks)

		body, err := json.Marshal(p.buildRequest(params, true))
		if err != nil {
			chunks <- Chunk{Kind: ChunkError, Err: &chaterrors.NetworkError{Provider: p.Name(), Err: err}}
			return
		}
		req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, p.baseURL(cred)+"/api/chat", bytes.NewReader(body))
		if err != nil {
			chunks <- Chunk{Kind: ChunkError, Err: &chaterrors.NetworkError{Provider: p.Name(), Err: err}}
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			if streamCtx.Err() != nil {
				return // cancelled, not an error worth surfacing
			}
			chunks <- Chunk{Kind: ChunkError, Err: &chaterrors.NetworkError{Provider: p.Name(), Err: err}}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			chunks <- Chunk{Kind: ChunkError, Err: &chaterrors.ProviderError{Provider: p.Name(), Status: resp.StatusCode}}
			return
		}

		var totalPrompt, totalCompletion int
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var parsed ollamaChatResponse
			if err := json.Unmarshal(line, &parsed); err != nil {
				continue
			}
			if parsed.Message.Content != "" {
				chunks <- Chunk{Kind: ChunkDelta, Delta: parsed.Message.Content}
			}
			if parsed.Done {
				totalPrompt = parsed.PromptEvalCount
				totalCompletion = parsed.EvalCount
				chunks <- Chunk{
					Kind:         ChunkComplete,
					FinishReason: "stop",
					Usage: &Usage{
						PromptTokens:     totalPrompt,
						CompletionTokens: totalCompletion,
						TotalTokens:      totalPrompt + totalCompletion,
					},
					Attachments: AttachmentResults{Failed: failed},
				}
			}
		}
		if err := scanner.Err(); err != nil && streamCtx.Err() == nil {
			chunks <- Chunk{Kind: ChunkError, Err: &chaterrors.NetworkError{Provider: p.Name(), Err: err}}
		}
	}()

	return &StreamHandle{Chunks: chunks, Cancel: cancel}, nil
}

func (p *ollamaProvider) ValidateCredential(ctx context.Context, cred Credential) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL(cred)+"/api/tags", nil)
	if err != nil {
		return &chaterrors.NetworkError{Provider: p.Name(), Err: err}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return &chaterrors.NetworkError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &chaterrors.ProviderError{Provider: p.Name(), Status: resp.StatusCode}
	}
	return nil
}

func (p *ollamaProvider) ListModels(ctx context.Context, cred Credential) ([]models.Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL(cred)+"/api/tags", nil)
	if err != nil {
		return nil, &chaterrors.NetworkError{Provider: p.Name(), Err: err}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &chaterrors.NetworkError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &chaterrors.ProviderError{Provider: p.Name(), Detail: "malformed tags response"}
	}
	out := make([]models.Info, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		out = append(out, models.Info{ID: m.Name, Provider: p.Name()})
	}
	return out, nil
}

func (p *ollamaProvider) GenerateImage(ctx context.Context, cred Credential, params ImageParams) (ImageResult, error) {
	return ImageResult{}, errImageGenUnsupported(p.Name())
}
