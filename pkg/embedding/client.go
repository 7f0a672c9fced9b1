// Package embedding implements the Embedding Client (C5, §4.5): text to
// vector via a provider-specific embeddings endpoint, with cosine
// similarity and a keyword fallback for when embeddings are unavailable.
// The OpenAI-shape and Ollama-shape dispatch is grounded on the teacher's
// pkg/memory/embedding/{openai.go,local.go,provider.go}.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

// Result is the outcome of an Embed call.
type Result struct {
	Vector     []float64
	Provider   string
	Model      string
	Dimensions int
}

// Credential is the minimal plaintext credential shape the client needs;
// callers decrypt an APICredential just-in-time and pass only this (§5,
// "credentials decrypted just-in-time, held only for the duration of a
// single provider call").
type Credential struct {
	APIKey string
}

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// Embed dispatches to the OpenAI-shape or Ollama-shape embeddings endpoint
// by profile.Provider (§4.5).
func Embed(ctx context.Context, text string, profile domain.EmbeddingProfile, cred Credential) (Result, error) {
	switch profile.Provider {
	case domain.EmbeddingProviderOpenAI:
		return embedOpenAIShape(ctx, text, profile, cred)
	case domain.EmbeddingProviderOllama:
		return embedOllamaShape(ctx, text, profile)
	default:
		return Result{}, &chaterrors.ConfigurationError{Missing: []string{"embedding profile provider"}}
	}
}

func embedOpenAIShape(ctx context.Context, text string, profile domain.EmbeddingProfile, cred Credential) (Result, error) {
	if strings.TrimSpace(cred.APIKey) == "" {
		return Result{}, &chaterrors.ConfigurationError{Missing: []string{"api credential for openai embeddings"}}
	}
	baseURL := profile.BaseURL
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client := oai.NewClient(option.WithAPIKey(cred.APIKey), option.WithBaseURL(baseURL))

	resp, err := client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: oai.EmbeddingModel(profile.ModelName),
		Input: oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		EncodingFormat: oai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return Result{}, &chaterrors.ProviderError{Provider: "openai", Detail: err.Error()}
	}
	if len(resp.Data) == 0 {
		return Result{}, &chaterrors.ProviderError{Provider: "openai", Detail: "empty embeddings response"}
	}
	vec := normalize(resp.Data[0].Embedding)
	return Result{Vector: vec, Provider: "openai", Model: profile.ModelName, Dimensions: len(vec)}, nil
}

func embedOllamaShape(ctx context.Context, text string, profile domain.EmbeddingProfile) (Result, error) {
	baseURL := strings.TrimRight(profile.BaseURL, "/")
	if baseURL == "" {
		return Result{}, &chaterrors.ConfigurationError{Missing: []string{"base_url for ollama embeddings"}}
	}
	payload := map[string]any{"model": profile.ModelName, "prompt": text}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return Result{}, &chaterrors.NetworkError{Provider: "ollama", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, &chaterrors.NetworkError{Provider: "ollama", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &chaterrors.NetworkError{Provider: "ollama", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &chaterrors.ProviderError{
			Provider: "ollama", Status: resp.StatusCode, Detail: previewString(data),
		}
	}

	var parsed struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Result{}, &chaterrors.ProviderError{Provider: "ollama", Detail: "malformed embeddings response"}
	}
	vec := normalize(parsed.Embedding)
	return Result{Vector: vec, Provider: "ollama", Model: profile.ModelName, Dimensions: len(vec)}, nil
}

func previewString(data []byte) string {
	const max = 300
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

// normalize L2-normalizes vec, matching the teacher's NormalizeEmbedding
// (pkg/memory/embedding/provider.go) so cosine similarity reduces to a dot
// product.
func normalize(vec []float64) []float64 {
	if len(vec) == 0 {
		return vec
	}
	var sumSq float64
	for _, v := range vec {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sumSq += v * v
		}
	}
	if sumSq <= 0 {
		return vec
	}
	mag := math.Sqrt(sumSq)
	if mag < 1e-10 {
		return vec
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = 0
		} else {
			out[i] = v / mag
		}
	}
	return out
}

// Cosine returns the cosine similarity of two equal-length float vectors.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
