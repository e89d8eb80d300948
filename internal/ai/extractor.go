package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"receiving-engine/internal/core"
)

// DocumentExtractor is the narrow interface the receiving engine consumes:
// an invoice image in, an already-deserialized extraction out. The engine
// never cares how the extraction was produced.
type DocumentExtractor interface {
	ExtractDocument(ctx context.Context, mimeType string, image []byte) (*core.DocumentExtraction, error)
}

// Extractor reads supplier invoices and delivery notes from photos using a
// vision model with a strict JSON schema.
type Extractor struct {
	client *openai.Client
}

func NewExtractor(apiKey string) *Extractor {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Extractor{client: &client}
}

const extractPrompt = `You are reading a supplier invoice or delivery note photographed in a grocery store.
Extract the document header and every line item exactly as printed.
Rules:
1. Keep item names verbatim, including pack-size words (e.g. "5 קילו", "500g").
2. quantity is the numeric amount on the line; unit is the printed unit token if any.
3. price is the per-unit price when printed, omitted otherwise.
4. document_type is "invoice" or "delivery_note".
5. Header fields you cannot read are omitted, never guessed.`

func (e *Extractor) ExtractDocument(ctx context.Context, mimeType string, image []byte) (*core.DocumentExtraction, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	schemaJSON, err := json.Marshal(generateSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemUnionParam{
					OfMessage: &responses.EasyInputMessageParam{
						Role: responses.EasyInputMessageRoleUser,
						Content: responses.EasyInputMessageContentUnionParam{
							OfInputItemContentList: responses.ResponseInputMessageContentListParam{
								responses.ResponseInputContentUnionParam{
									OfInputText: &responses.ResponseInputTextParam{Text: extractPrompt},
								},
								responses.ResponseInputContentUnionParam{
									OfInputImage: &responses.ResponseInputImageParam{
										Detail:   responses.ResponseInputImageDetailAuto,
										ImageURL: param.NewOpt(dataURL),
									},
								},
							},
						},
					},
				},
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "document_extraction",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Line items and header fields extracted from a supplier document"),
				},
			},
		},
	}

	resp, err := e.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var extraction core.DocumentExtraction
	if err := json.Unmarshal([]byte(content), &extraction); err != nil {
		return nil, fmt.Errorf("failed to parse extraction: %w", err)
	}
	return &extraction, nil
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v core.DocumentExtraction
	return reflector.Reflect(v)
}
