package toolruntime

import (
	"context"
	"strings"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/filestore"
	"github.com/inkwell-ai/chatcore/pkg/provider"
)

// ImageCredentialResolver resolves the user's default image-generation
// profile and decrypted credential.
type ImageCredentialResolver interface {
	DefaultImageProfile(ctx context.Context, userID chatid.ID) (domain.ImageGenerationProfile, provider.Credential, bool, error)
}

// meResolution is the participant name + appearance fragment {{me}}
// resolves to in an image prompt (§4.9).
type meResolution struct {
	Name       string
	Appearance string
}

func (m meResolution) expand(prompt string) string {
	fragment := m.Name
	if m.Appearance != "" {
		fragment = m.Name + ", " + m.Appearance
	}
	return strings.ReplaceAll(prompt, "{{me}}", fragment)
}

// imageProviderWireShape maps an ImageGenerationProfile's provider kind onto
// one of the Factory's lowercase wire-shape keys. Google Imagen has no
// adapter in this module's closed provider set (§4.8), so it reports false.
func imageProviderWireShape(kind domain.ImageGenProviderKind) (string, bool) {
	switch kind {
	case domain.ImageGenProviderOpenAI:
		return "openai", true
	case domain.ImageGenProviderGrok:
		return "grok", true
	default:
		return "", false
	}
}

// NewGenerateImageTool builds the generate_image tool: it resolves {{me}},
// calls the image-gen provider adapter, writes the result through the file
// store with source=GENERATED/category=IMAGE, links it to chatID, and
// returns a Result whose Details carry the new file id so the orchestrator
// can attach it to the follow-up assistant message (§4.9, spec's tool
// roundtrip scenario).
func NewGenerateImageTool(
	factory *provider.Factory,
	resolver ImageCredentialResolver,
	store *filestore.Store,
	userID, chatID chatid.ID,
	me meResolution,
) *Tool {
	return &Tool{
		Definition: Definition{
			Name:        "generate_image",
			Description: "Generate an image from a text prompt and attach it to the conversation.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "Description of the image to generate. May contain {{me}}, which resolves to the calling participant's name and appearance.",
					},
				},
				"required": []string{"prompt"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Result, error) {
			prompt, err := readString(args, "prompt", true)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			prompt = me.expand(prompt)

			profile, cred, ok, err := resolver.DefaultImageProfile(ctx, userID)
			if err != nil {
				return ErrorResult("failed to resolve image generation profile: " + err.Error()), nil
			}
			if !ok {
				return ErrorResult("no image generation profile is configured"), nil
			}

			wireShape, ok := imageProviderWireShape(profile.Provider)
			if !ok {
				return ErrorResult("image generation provider " + string(profile.Provider) + " is not supported"), nil
			}
			adapter, err := factory.Build(wireShape)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}

			img, err := adapter.GenerateImage(ctx, cred, provider.ImageParams{
				Model:  profile.ModelName,
				Prompt: prompt,
			})
			if err != nil {
				return ErrorResult("image generation failed: " + err.Error()), nil
			}

			data := img.Data
			mime := img.MimeType
			if len(data) == 0 && img.URL != "" {
				return &Result{
					Status:  ResultSuccess,
					Text:    "Generated image available at " + img.URL,
					Details: map[string]any{"url": img.URL},
				}, nil
			}
			if mime == "" {
				mime = "image/png"
			}

			entry, err := store.Create(data, "generated.png", mime, domain.FileSourceGenerated, domain.FileCategoryImage, userID, []chatid.ID{chatID})
			if err != nil {
				return ErrorResult("failed to store generated image: " + err.Error()), nil
			}

			return &Result{
				Status:  ResultSuccess,
				Text:    "Generated an image for: " + prompt,
				Details: map[string]any{"fileId": entry.ID.String()},
			}, nil
		},
	}
}
