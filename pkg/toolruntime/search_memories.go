package toolruntime

import (
	"context"
	"fmt"
	"strings"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/memory"
)

// NewSearchMemoriesTool builds the search_memories tool, a thin wrapper
// around the Memory Engine's blended retrieval (§4.7) that lets the model
// pull a character's memories back into context on demand instead of
// waiting for the next turn's automatic recall pass.
func NewSearchMemoriesTool(engine *memory.Engine, characterID, userID chatid.ID) *Tool {
	return &Tool{
		Definition: Definition{
			Name:        "search_memories",
			Description: "Search this character's long-term memories for facts relevant to a query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to search for.",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of memories to return (default 8).",
					},
				},
				"required": []string{"query"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Result, error) {
			query, err := readString(args, "query", true)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			limit := readIntDefault(args, "limit", 8)

			ranked, err := engine.Search(ctx, characterID, userID, query, memory.SearchOptions{TopK: limit})
			if err != nil {
				return ErrorResult("memory search failed: " + err.Error()), nil
			}
			if len(ranked) == 0 {
				return &Result{Status: ResultSuccess, Text: "No relevant memories found."}, nil
			}

			var sb strings.Builder
			ids := make([]string, 0, len(ranked))
			for i, r := range ranked {
				fmt.Fprintf(&sb, "%d. %s (importance %.2f)\n", i+1, r.Memory.Content, r.Memory.Importance)
				ids = append(ids, r.Memory.ID.String())
			}

			return &Result{
				Status:  ResultSuccess,
				Text:    strings.TrimRight(sb.String(), "\n"),
				Details: map[string]any{"memoryIds": ids},
			}, nil
		},
	}
}
