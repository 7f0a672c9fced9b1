package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/models"
	"github.com/inkwell-ai/chatcore/pkg/tokencount"
)

// anthropicProvider adapts Claude's Messages API, grounded on the teacher's
// pkg/connector/provider_anthropic.go.
type anthropicProvider struct {
	log zerolog.Logger
}

// NewAnthropic returns the Anthropic Messages API adapter.
func NewAnthropic(log zerolog.Logger) Provider {
	return &anthropicProvider{log: log.With().Str("provider", "anthropic").Logger()}
}

func (p *anthropicProvider) Name() string                      { return "anthropic" }
func (p *anthropicProvider) TokenProvider() tokencount.Provider { return tokencount.ProviderAnthropic }
func (p *anthropicProvider) Capabilities() Capabilities {
	return Capabilities{Vision: true, Tools: true, PDF: true}
}

func (p *anthropicProvider) client(cred Credential) anthropic.Client {
	opts := []option.RequestOption{option.WithAPIKey(cred.APIKey)}
	if cred.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cred.BaseURL))
	}
	return anthropic.NewClient(opts...)
}

func (p *anthropicProvider) buildRequest(params SendParams) anthropic.MessageNewParams {
	maxTokens := int64(4096)
	if params.MaxTokens != nil {
		maxTokens = int64(*params.MaxTokens)
	}
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.Model),
		Messages:  toAnthropicMessages(params.Messages),
		MaxTokens: maxTokens,
	}
	if params.SystemPrompt != "" {
		req.System = []anthropic.TextBlockParam{{Text: params.SystemPrompt}}
	}
	if params.Temperature != nil {
		req.Temperature = anthropic.Float(*params.Temperature)
	}
	if params.TopP != nil {
		req.TopP = anthropic.Float(*params.TopP)
	}
	if len(params.Tools) > 0 {
		req.Tools = toAnthropicTools(params.Tools)
	}
	return req
}

func (p *anthropicProvider) SendMessage(ctx context.Context, cred Credential, params SendParams) (SendResult, error) {
	var failed []FailedAttachment
	params.Messages, failed = FilterMessageAttachments(p.Capabilities(), params.Messages)
	resp, err := p.client(cred).Messages.New(ctx, p.buildRequest(params))
	if err != nil {
		return SendResult{}, normalizeProviderError(p.Name(), err)
	}

	var content strings.Builder
	var toolCalls []ToolCall
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			toolCalls = append(toolCalls, ToolCall{ID: b.ID, Name: b.Name, Arguments: string(b.Input)})
		}
	}

	return SendResult{
		Content:      content.String(),
		FinishReason: string(resp.StopReason),
		ToolCalls:    toolCalls,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		Attachments: AttachmentResults{Failed: failed},
	}, nil
}

func (p *anthropicProvider) StreamMessage(ctx context.Context, cred Credential, params SendParams) (*StreamHandle, error) {
	var failed []FailedAttachment
	params.Messages, failed = FilterMessageAttachments(p.Capabilities(), params.Messages)
	streamCtx, cancel := context.WithCancel(ctx)
	chunks := make(chan Chunk, 32)

	go func() {
		defer close(chunks)
		stream := p.client(cred).Messages.NewStreaming(streamCtx, p.buildRequest(params))

		var currentToolCall *ToolCall
		var currentToolInput strings.Builder
		var inputTokens int64

		for stream.Next() {
			event := stream.Current()
			switch evt := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				inputTokens = evt.Message.Usage.InputTokens

			case anthropic.ContentBlockStartEvent:
				if block, ok := evt.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					currentToolCall = &ToolCall{ID: block.ID, Name: block.Name}
					currentToolInput.Reset()
				}

			case anthropic.ContentBlockDeltaEvent:
				switch delta := evt.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					chunks <- Chunk{Kind: ChunkDelta, Delta: delta.Text}
				case anthropic.InputJSONDelta:
					currentToolInput.WriteString(delta.PartialJSON)
				}

			case anthropic.ContentBlockStopEvent:
				if currentToolCall != nil {
					call := *currentToolCall
					call.Arguments = currentToolInput.String()
					if call.Arguments == "" {
						call.Arguments = "{}"
					}
					chunks <- Chunk{Kind: ChunkToolCall, ToolCall: &call}
					currentToolCall = nil
				}

			case anthropic.MessageDeltaEvent:
				chunks <- Chunk{
					Kind:         ChunkComplete,
					FinishReason: string(evt.Delta.StopReason),
					Usage: &Usage{
						PromptTokens:     int(inputTokens),
						CompletionTokens: int(evt.Usage.OutputTokens),
						TotalTokens:      int(inputTokens) + int(evt.Usage.OutputTokens),
					},
					Attachments: AttachmentResults{Failed: failed},
				}
			}
		}

		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			chunks <- Chunk{Kind: ChunkError, Err: normalizeProviderError(p.Name(), err)}
		}
	}()

	return &StreamHandle{Chunks: chunks, Cancel: cancel}, nil
}

func (p *anthropicProvider) ValidateCredential(ctx context.Context, cred Credential) error {
	_, err := p.client(cred).Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return normalizeProviderError(p.Name(), err)
	}
	return nil
}

func (p *anthropicProvider) ListModels(ctx context.Context, cred Credential) ([]models.Info, error) {
	page, err := p.client(cred).Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, normalizeProviderError(p.Name(), err)
	}
	var out []models.Info
	for page != nil {
		for _, m := range page.Data {
			out = append(out, models.Info{ID: m.ID, Name: m.DisplayName, Provider: p.Name(), SupportsVision: true, SupportsToolCalling: true})
		}
		page, err = page.GetNextPage()
		if err != nil {
			break
		}
	}
	return out, nil
}

func (p *anthropicProvider) GenerateImage(ctx context.Context, cred Credential, params ImageParams) (ImageResult, error) {
	return ImageResult{}, errImageGenUnsupported(p.Name())
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			continue // Anthropic carries system text in the top-level System field
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Text, false)))
		default:
			out = append(out, anthropic.NewUserMessage(toAnthropicContentBlocks(m)...))
		}
	}
	return out
}

func toAnthropicContentBlocks(m Message) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Attachments)+1)
	if strings.TrimSpace(m.Text) != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Text))
	}
	for _, a := range m.Attachments {
		switch a.Kind {
		case AttachmentImage:
			blocks = append(blocks, anthropic.NewImageBlock(anthropic.Base64ImageSourceParam{
				MediaType: anthropic.Base64ImageSourceMediaType(a.MimeType),
				Data:      base64.StdEncoding.EncodeToString(a.Data),
			}))
		case AttachmentPDF:
			blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
				Data: base64.StdEncoding.EncodeToString(a.Data),
			}))
		}
	}
	return blocks
}

func toAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.Parameters["properties"],
				},
			},
		})
	}
	return out
}
