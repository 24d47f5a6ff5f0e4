package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Vision Structuring Prompts ---
const VisionSystemPrompt = "You are a document analyst. You read scanned or photographed pages of commercial documents (catalogues, flyers, price lists, letters) and recover their content faithfully as structured data."
const VisionUserPrompt = `You will be given the images of ONE page of a document, in reading order.

Read every image and return a JSON object with exactly these keys:
- "title": the main heading of the page. Empty string if there is none.
- "mainData": all remaining body content of the page as plain text. Keep paragraphs separated by blank lines and list items on their own lines. Do not summarize, translate or invent content.
- "contactInfo": any contact details shown on the page (phone numbers, emails, postal address, website), one per line. Empty string if there are none.

Do not repeat contact details inside "mainData". If the images contain no readable text, return empty strings for all three keys.`

// --- Text Structuring Prompts ---
const TextSystemPrompt = "You are a document editor. You receive the raw text layer extracted from one page of a PDF, which may have broken line wraps and stray layout artifacts, and you return it as clean structured data."
const TextUserPrompt = `Below is the raw text of ONE page of a document.

Return a JSON object with exactly these keys:
- "title": the main heading of the page. Empty string if there is none.
- "mainData": the body content as plain text with line wraps repaired and artifacts (page numbers, running headers) removed. Do not summarize, translate or invent content.
- "contactInfo": any contact details found (phone numbers, emails, postal address, website), one per line. Empty string if there are none.

Do not repeat contact details inside "mainData".

Raw text:
`

// pageContentSchema constrains both models to the {title, mainData, contactInfo} triple.
var pageContentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":       {Type: genai.TypeString, Description: "Main heading of the page"},
		"mainData":    {Type: genai.TypeString, Description: "Body content of the page"},
		"contactInfo": {Type: genai.TypeString, Description: "Contact details, one per line"},
	},
	Required: []string{"title", "mainData", "contactInfo"},
}

// VertexClient holds the pre-configured generative models used for structuring.
type VertexClient struct {
	VisionModel *genai.GenerativeModel
	TextModel   *genai.GenerativeModel
	baseClient  *genai.Client
}

// NewVertexClient creates a client holding the vision and text structuring models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	visionModel := baseClient.GenerativeModel(modelName)
	configureStructuringModel(visionModel, VisionSystemPrompt)

	textModel := baseClient.GenerativeModel(modelName)
	configureStructuringModel(textModel, TextSystemPrompt)

	return &VertexClient{
		VisionModel: visionModel,
		TextModel:   textModel,
		baseClient:  baseClient,
	}, nil
}

func configureStructuringModel(m *genai.GenerativeModel, systemPrompt string) {
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   pageContentSchema,
		Temperature:      genai.Ptr[float32](0.0),
	}
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
