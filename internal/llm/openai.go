// Package llm generates reader-facing paper summaries. The summarizer emits
// markdown with <FIGURE_ID>N</FIGURE_ID> placeholder tokens instead of image
// links; the resolve package substitutes those against the extracted figure
// registry afterwards, so the model never has to produce a working URL.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/paperlens/paperlens/internal/ident"
	"github.com/paperlens/paperlens/internal/logger"
	"github.com/paperlens/paperlens/models"
)

// Summarizer produces a summary of a paper given its text content and the
// extracted figure registry.
type Summarizer interface {
	Summarize(ctx context.Context, paperID, content string, registry models.Registry) (*models.Summary, error)
}

var summarySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"markdown": map[string]any{
			"type": "string",
		},
		"figure_refs": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"thumbnail_ref": map[string]any{
			"type": "string",
		},
	},
	"required":             []string{"markdown", "figure_refs", "thumbnail_ref"},
	"additionalProperties": false,
}

const summaryInstructions = `Summarize this AI safety paper for a technical blog audience.

1. Write the summary as markdown in the "markdown" field:
   - Lead with what the paper shows, then how.
   - Keep it under 800 words.
   - Where a figure or table from the inventory below supports a point, reference it with a placeholder token on its own line: <FIGURE_ID>3</FIGURE_ID> for Figure 3, <FIGURE_ID>5.a</FIGURE_ID> for subfigure (a) of Figure 5.
   - Only reference figures that appear in the inventory. Never invent figure numbers and never write image URLs or markdown image syntax.

2. List every display id you referenced, in order of first use, in "figure_refs" (e.g. ["3", "5.a"]).

3. Pick the single figure that best represents the paper and put its display id in "thumbnail_ref". Use "" if no figure is suitable.`

// OpenAISummarizer implements Summarizer against the OpenAI Responses API.
type OpenAISummarizer struct {
	apiKey string
	model  shared.ChatModel
	log    logger.Logger
}

// NewOpenAISummarizer creates a summarizer. model may be empty, which picks
// the default.
func NewOpenAISummarizer(apiKey string, model string, log logger.Logger) *OpenAISummarizer {
	m := shared.ChatModelGPT5Mini
	if model != "" {
		m = shared.ChatModel(model)
	}
	return &OpenAISummarizer{apiKey: apiKey, model: m, log: log}
}

// Summarize calls the model once, rate limited, and parses its structured
// output. Figure references are validated against the registry; unknown refs
// are dropped from FigureRefs (the resolver degrades them anyway, but there
// is no reason to advertise them).
func (s *OpenAISummarizer) Summarize(ctx context.Context, paperID, content string, registry models.Registry) (*models.Summary, error) {
	prompt := buildPrompt(content, registry)
	estimated := len(prompt)/4 + 2000

	client := openai.NewClient(option.WithAPIKey(s.apiKey))
	response, err := RateLimitedCall(ctx, estimated, s.log, func(ctx context.Context) (*responses.Response, error) {
		return client.Responses.New(ctx, responses.ResponseNewParams{
			Model: s.model,
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: responses.ResponseInputParam{
					responses.ResponseInputItemParamOfMessage(
						responses.ResponseInputMessageContentListParam{
							responses.ResponseInputContentParamOfInputText(prompt),
						},
						"user",
					),
				},
			},
			Text: responses.ResponseTextConfigParam{
				Format: responses.ResponseFormatTextConfigParamOfJSONSchema("paper_summary", summarySchema),
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("summarizing %s: %w", paperID, err)
	}

	var summary models.Summary
	if err := json.Unmarshal([]byte(response.OutputText()), &summary); err != nil {
		return nil, fmt.Errorf("parsing summary for %s: %w", paperID, err)
	}
	summary.FigureRefs = knownRefs(summary.FigureRefs, registry)
	return &summary, nil
}

// buildPrompt assembles instructions, the figure inventory, and the paper
// text into one user message.
func buildPrompt(content string, registry models.Registry) string {
	var b strings.Builder
	b.WriteString(summaryInstructions)
	b.WriteString("\n\nFigure inventory:\n")
	b.WriteString(FigureInventory(registry))
	b.WriteString("\nPaper text:\n\n")
	b.WriteString(content)
	return b.String()
}

// FigureInventory renders the registry as a compact listing the model can
// reference: one line per figure/table, one indented line per subfigure.
// Ordering is deterministic: figures before tables, appendix last, by number.
func FigureInventory(registry models.Registry) string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, ki, ai, _, _ := ident.ParseCanonical(ids[i])
		nj, kj, aj, _, _ := ident.ParseCanonical(ids[j])
		if ki != kj {
			return ki == "fig"
		}
		if ai != aj {
			return !ai
		}
		return ni < nj
	})

	var b strings.Builder
	for _, id := range ids {
		rec := registry[id]
		display, ok := ident.ToDisplayID(id)
		if !ok {
			continue
		}
		label := "Figure"
		if rec.Type == models.TypeTable {
			label = "Table"
		}
		fmt.Fprintf(&b, "- %s %s: %s\n", label, display, rec.Caption)
		for _, sf := range rec.Subfigures {
			fmt.Fprintf(&b, "  - %s.%s: %s\n", display, sf.ID, sf.Caption)
		}
	}
	if b.Len() == 0 {
		return "(none)\n"
	}
	return b.String()
}

// knownRefs filters display ids down to those the registry can satisfy.
func knownRefs(refs []string, registry models.Registry) []string {
	var out []string
	for _, ref := range refs {
		num, letter, ok := ident.ParseDisplayID(ref)
		if !ok {
			continue
		}
		found := false
		for _, id := range []string{
			fmt.Sprintf("fig%d", num),
			fmt.Sprintf("appendix_fig%d", num),
			fmt.Sprintf("tab%d", num),
			fmt.Sprintf("appendix_tab%d", num),
		} {
			rec, exists := registry[id]
			if !exists {
				continue
			}
			if letter == "" {
				found = true
				break
			}
			for _, sf := range rec.Subfigures {
				if sf.ID == letter {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if found {
			out = append(out, ref)
		}
	}
	return out
}
