package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/models"
	"github.com/inkwell-ai/chatcore/pkg/tokencount"
)

// openAIShape backs every Chat-Completions-compatible adapter: OpenAI
// itself, OpenRouter, a generic OpenAI-Compatible endpoint, Grok, and
// Gab AI. They differ only in name, default base URL, token-estimate
// ratio, and capability flags, grounded on the teacher's
// NewOpenAIProviderWithBaseURL pattern (pkg/connector/provider_openai.go)
// of reusing one client shape across multiple base URLs.
type openAIShape struct {
	name           string
	tokenProvider  tokencount.Provider
	defaultBaseURL string
	caps           Capabilities
	log            zerolog.Logger
}

// NewOpenAI returns the adapter for OpenAI's own Chat Completions API.
func NewOpenAI(log zerolog.Logger) Provider {
	return &openAIShape{
		name:          "openai",
		tokenProvider: tokencount.ProviderOpenAI,
		caps:          Capabilities{Vision: true, Tools: true, PDF: true, Audio: true, ImageGen: true},
		log:           log.With().Str("provider", "openai").Logger(),
	}
}

// NewOpenRouter returns the adapter for OpenRouter's OpenAI-compatible proxy.
func NewOpenRouter(log zerolog.Logger) Provider {
	return &openAIShape{
		name:           "openrouter",
		tokenProvider:  tokencount.ProviderOpenRouter,
		defaultBaseURL: "https://openrouter.ai/api/v1",
		caps:           Capabilities{Vision: true, Tools: true, PDF: true},
		log:            log.With().Str("provider", "openrouter").Logger(),
	}
}

// NewOpenAICompatible returns the adapter for a user-supplied, unbranded
// OpenAI-compatible endpoint. Capabilities are deliberately conservative
// since the actual backend is unknown.
func NewOpenAICompatible(log zerolog.Logger) Provider {
	return &openAIShape{
		name:          "openai-compatible",
		tokenProvider: tokencount.ProviderOpenAICompat,
		caps:          Capabilities{Tools: true},
		log:           log.With().Str("provider", "openai-compatible").Logger(),
	}
}

// NewGrok returns the adapter for xAI's Grok, reached over its
// OpenAI-compatible Chat Completions endpoint.
func NewGrok(log zerolog.Logger) Provider {
	return &openAIShape{
		name:           "grok",
		tokenProvider:  tokencount.ProviderGrok,
		defaultBaseURL: "https://api.x.ai/v1",
		caps:           Capabilities{Vision: true, Tools: true, ImageGen: true},
		log:            log.With().Str("provider", "grok").Logger(),
	}
}

// NewGabAI returns the adapter for Gab AI's OpenAI-compatible endpoint.
func NewGabAI(log zerolog.Logger) Provider {
	return &openAIShape{
		name:           "gab-ai",
		tokenProvider:  tokencount.ProviderGabAI,
		defaultBaseURL: "https://gab.ai/api/v1",
		caps:           Capabilities{Tools: true},
		log:            log.With().Str("provider", "gab-ai").Logger(),
	}
}

func (p *openAIShape) Name() string                        { return p.name }
func (p *openAIShape) TokenProvider() tokencount.Provider   { return p.tokenProvider }
func (p *openAIShape) Capabilities() Capabilities           { return p.caps }

func (p *openAIShape) client(cred Credential) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(cred.APIKey)}
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = p.defaultBaseURL
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...)
}

func (p *openAIShape) buildRequest(params SendParams) openai.ChatCompletionNewParams {
	req := openai.ChatCompletionNewParams{
		Model:    params.Model,
		Messages: toChatMessages(params.Messages),
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = openai.Int(int64(*params.MaxTokens))
	}
	if params.Temperature != nil {
		req.Temperature = openai.Float(*params.Temperature)
	}
	if params.TopP != nil {
		req.TopP = openai.Float(*params.TopP)
	}
	if len(params.Tools) > 0 && p.caps.Tools {
		req.Tools = toChatTools(params.Tools)
	}
	return req
}

func (p *openAIShape) SendMessage(ctx context.Context, cred Credential, params SendParams) (SendResult, error) {
	if len(params.Tools) > 0 && !p.caps.Tools {
		return SendResult{}, errToolsUnsupported(p.name)
	}
	var failed []FailedAttachment
	params.Messages, failed = FilterMessageAttachments(p.caps, params.Messages)
	resp, err := p.client(cred).Chat.Completions.New(ctx, p.buildRequest(params))
	if err != nil {
		return SendResult{}, normalizeOpenAIError(p.name, err)
	}
	var content, finishReason string
	var toolCalls []ToolCall
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		content = choice.Message.Content
		finishReason = choice.FinishReason
		for _, tc := range choice.Message.ToolCalls {
			toolCalls = append(toolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
		}
	}
	return SendResult{
		Content:      content,
		FinishReason: finishReason,
		ToolCalls:    toolCalls,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		Attachments: AttachmentResults{Failed: failed},
	}, nil
}

func (p *openAIShape) StreamMessage(ctx context.Context, cred Credential, params SendParams) (*StreamHandle, error) {
	if len(params.Tools) > 0 && !p.caps.Tools {
		return nil, errToolsUnsupported(p.name)
	}
	var failed []FailedAttachment
	params.Messages, failed = FilterMessageAttachments(p.caps, params.Messages)
	streamCtx, cancel := context.WithCancel(ctx)
	chunks := make(chan Chunk, 32)

	go func() {
		defer close(chunks)
		stream := p.client(cred).Chat.Completions.NewStreaming(streamCtx, p.buildRequest(params))

		toolArgs := map[int64]*strings.Builder{}
		toolMeta := map[int64]ToolCall{}

		for stream.Next() {
			evt := stream.Current()
			if len(evt.Choices) == 0 {
				continue
			}
			choice := evt.Choices[0]

			if choice.Delta.Content != "" {
				chunks <- Chunk{Kind: ChunkDelta, Delta: choice.Delta.Content}
			}
			for _, tc := range choice.Delta.ToolCalls {
				builder, ok := toolArgs[tc.Index]
				if !ok {
					builder = &strings.Builder{}
					toolArgs[tc.Index] = builder
					toolMeta[tc.Index] = ToolCall{ID: tc.ID, Name: tc.Function.Name}
				}
				if tc.Function.Arguments != "" {
					builder.WriteString(tc.Function.Arguments)
				}
			}
			if choice.FinishReason != "" {
				for idx, meta := range toolMeta {
					call := meta
					call.Arguments = toolArgs[idx].String()
					if call.Arguments == "" {
						call.Arguments = "{}"
					}
					chunks <- Chunk{Kind: ChunkToolCall, ToolCall: &call}
				}
				chunks <- Chunk{
					Kind:         ChunkComplete,
					FinishReason: choice.FinishReason,
					Usage: &Usage{
						PromptTokens:     int(evt.Usage.PromptTokens),
						CompletionTokens: int(evt.Usage.CompletionTokens),
						TotalTokens:      int(evt.Usage.TotalTokens),
					},
					Attachments: AttachmentResults{Failed: failed},
				}
			}
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			chunks <- Chunk{Kind: ChunkError, Err: normalizeOpenAIError(p.name, err)}
		}
	}()

	return &StreamHandle{Chunks: chunks, Cancel: cancel}, nil
}

func (p *openAIShape) ValidateCredential(ctx context.Context, cred Credential) error {
	_, err := p.client(cred).Models.List(ctx)
	if err != nil {
		return normalizeOpenAIError(p.name, err)
	}
	return nil
}

func (p *openAIShape) ListModels(ctx context.Context, cred Credential) ([]models.Info, error) {
	page, err := p.client(cred).Models.List(ctx)
	if err != nil {
		return nil, normalizeOpenAIError(p.name, err)
	}
	var out []models.Info
	for page != nil {
		for _, m := range page.Data {
			out = append(out, models.Info{ID: m.ID, Provider: p.name})
		}
		page, err = page.GetNextPage()
		if err != nil {
			break
		}
	}
	return out, nil
}

func (p *openAIShape) GenerateImage(ctx context.Context, cred Credential, params ImageParams) (ImageResult, error) {
	if !p.caps.ImageGen {
		return ImageResult{}, errImageGenUnsupported(p.name)
	}
	resp, err := p.client(cred).Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  openai.ImageModel(params.Model),
		Prompt: params.Prompt,
		Size:   openai.ImageGenerateParamsSize(params.Size),
	})
	if err != nil {
		return ImageResult{}, normalizeOpenAIError(p.name, err)
	}
	if len(resp.Data) == 0 {
		return ImageResult{}, &chaterrors.ProviderError{Provider: p.name, Detail: "image generation returned no data"}
	}
	img := resp.Data[0]
	if img.B64JSON != "" {
		data, decErr := base64.StdEncoding.DecodeString(img.B64JSON)
		if decErr != nil {
			return ImageResult{}, &chaterrors.ProviderError{Provider: p.name, Detail: "malformed base64 image payload"}
		}
		return ImageResult{MimeType: "image/png", Data: data}, nil
	}
	return ImageResult{URL: img.URL}, nil
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Text, m.ToolCallID))
		default:
			if len(m.Attachments) == 0 {
				out = append(out, openai.UserMessage(m.Text))
				continue
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: toChatContentParts(m),
					},
				},
			})
		}
	}
	return out
}

func toChatContentParts(m Message) []openai.ChatCompletionContentPartUnionParam {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Attachments)+1)
	if strings.TrimSpace(m.Text) != "" {
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfText: &openai.ChatCompletionContentPartTextParam{Text: m.Text},
		})
	}
	for _, a := range m.Attachments {
		switch a.Kind {
		case AttachmentImage:
			url := a.URL
			if url == "" {
				url = dataURL(a.MimeType, a.Data)
			}
			parts = append(parts, openai.ChatCompletionContentPartUnionParam{
				OfImageURL: &openai.ChatCompletionContentPartImageParam{
					ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: url},
				},
			})
		case AttachmentAudio:
			parts = append(parts, openai.ChatCompletionContentPartUnionParam{
				OfInputAudio: &openai.ChatCompletionContentPartInputAudioParam{
					InputAudio: openai.ChatCompletionContentPartInputAudioInputAudioParam{
						Data:   base64.StdEncoding.EncodeToString(a.Data),
						Format: strings.TrimPrefix(a.MimeType, "audio/"),
					},
				},
			})
		case AttachmentPDF:
			parts = append(parts, openai.ChatCompletionContentPartUnionParam{
				OfFile: &openai.ChatCompletionContentPartFileParam{
					File: openai.ChatCompletionContentPartFileFileParam{
						FileData: openai.String(dataURL(a.MimeType, a.Data)),
						Filename: openai.String("document.pdf"),
					},
				},
			})
		}
	}
	return parts
}

func toChatTools(tools []ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  t.Parameters,
				},
			},
		})
	}
	return out
}

func dataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func normalizeOpenAIError(providerName string, err error) error {
	return normalizeProviderError(providerName, err)
}
