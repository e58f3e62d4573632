package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// --- Sheet Analyzer Model Prompts ---
const AnalyzerSystemPrompt = "You are a specialist reviewer of construction detail sheets. Your task is to describe a single scanned sheet so that it can be found later by keyword search. You must output your response as a single valid JSON object."

const AnalyzerUserPrompt = `Analyze the provided page image of a construction detail sheet.

Follow these rules precisely:
1.  Identify the sheet title, usually found in the title block or as the largest heading.
2.  Identify every distinct detail drawn on the sheet. A detail is one self-contained drawing with its own callout, scale, or title.
3.  For each detail, produce a JSON object with exactly these keys:
    - "title": the detail's title or callout text.
    - "description": one or two sentences describing what the detail shows, naming materials, members, fasteners, and dimensions where legible.
    - "keywords": an array of lowercase search keywords for this detail.
    - "location": where the detail sits on the sheet. Must be one of: "full-sheet", "top-left", "top-right", "top-center", "bottom-left", "bottom-right", "bottom-center", "center", "left", "right".
4.  The final output MUST be a single valid JSON object with exactly these keys:
    - "sheetTitle": the sheet title.
    - "detailCount": the number of distinct details found.
    - "details": the array of detail objects from rule 3.
    - "generalKeywords": an array of lowercase keywords describing the whole sheet.
    - "overallSummary": a short free-text summary of the sheet.
Do not include any text before or after the JSON object.

Example output format:
{
  "sheetTitle": "Typical Wall Sections",
  "detailCount": 2,
  "details": [
    {
      "title": "1/A5 - Parapet Cap Detail",
      "description": "Parapet cap flashing over treated wood blocking on an 8 inch CMU wall.",
      "keywords": ["parapet", "cap flashing", "cmu", "blocking"],
      "location": "top-left"
    },
    {
      "title": "2/A5 - Base of Wall",
      "description": "Slab edge with dowels into the foundation wall and perimeter insulation.",
      "keywords": ["slab edge", "dowel", "foundation", "insulation"],
      "location": "bottom-left"
    }
  ],
  "generalKeywords": ["wall section", "masonry", "flashing"],
  "overallSummary": "Wall section details covering the parapet cap and base of wall conditions."
}`

// VertexClient holds the pre-configured generative model for sheet analysis.
type VertexClient struct {
	AnalyzerModel *genai.GenerativeModel
	baseClient    *genai.Client
}

// NewVertexClient creates a new client holding the analyzer model.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	// --- Configure the analyzer model ---
	analyzerModel := baseClient.GenerativeModel("gemini-1.5-pro")
	analyzerModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(AnalyzerSystemPrompt)},
	}
	analyzerModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output. This is a critical setting for this model.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0), // Low temp for deterministic, structured output
	}
	analyzerModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		AnalyzerModel: analyzerModel,
		baseClient:    baseClient,
	}, nil
}

// DescribeSheet sends one page image to the analyzer model and returns the raw
// response text. Interpreting that text is the caller's concern; only
// transport or service failures are errors here.
func (c *VertexClient) DescribeSheet(ctx context.Context, image []byte) (string, error) {
	prompt := genai.Text(AnalyzerUserPrompt)
	imagePart := genai.Blob{
		MIMEType: "image/png",
		Data:     image,
	}

	resp, err := c.AnalyzerModel.GenerateContent(ctx, imagePart, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate sheet analysis from gemini: %w", err)
	}
	return extractText(resp), nil
}

// extractText robustly gets the raw text content from the model response.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(content.String())
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
