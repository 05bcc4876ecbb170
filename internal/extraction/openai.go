package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"procurement/internal/model"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const systemPrompt = "You are an expert at extracting structured data from business documents such as proformas, invoices and receipts."

const fieldsPrompt = `Extract the following information from this %s and return it as JSON:
1. vendor_name: the company or vendor name
2. vendor_address: full vendor address
3. total_amount: total amount as a number without currency symbols
4. currency: ISO currency code
5. payment_terms: payment terms or conditions
6. items: array of {description, quantity, unit_price, total_price}

Use an empty string for text fields that cannot be found, null for a missing total and an empty array for missing items.`

// ChatClient is the part of *openai.Client the gateway uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig holds the model parameters
type OpenAIConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// OpenAIGateway extracts fields with a JSON-mode chat completion.
type OpenAIGateway struct {
	client ChatClient
	cfg    OpenAIConfig
	logger *zap.Logger
}

func NewOpenAIGateway(client ChatClient, cfg OpenAIConfig, logger *zap.Logger) *OpenAIGateway {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &OpenAIGateway{client: client, cfg: cfg, logger: logger}
}

// NewOpenAIClient builds a client, optionally against a compatible base URL.
// A positive timeout bounds every HTTP call.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	conf := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		conf.BaseURL = baseURL
	}
	if timeout > 0 {
		conf.HTTPClient = &http.Client{Timeout: timeout}
	}
	return openai.NewClientWithConfig(conf)
}

func (g *OpenAIGateway) Extract(ctx context.Context, doc Document) (*Result, error) {
	user, err := userMessage(doc)
	if err != nil {
		return nil, Permanent(err)
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			user,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	fields, err := parseFields(content)
	if err != nil {
		g.logger.Warn("Failed to parse extraction result",
			zap.String("request_id", doc.RequestID.String()),
			zap.String("kind", string(doc.Kind)),
			zap.Error(err))
		return nil, err
	}

	return &Result{Fields: *fields, Confidence: fields.Completeness()}, nil
}

func userMessage(doc Document) (openai.ChatCompletionMessage, error) {
	if len(doc.Data) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("document %q is empty", doc.Name)
	}
	instructions := fmt.Sprintf(fieldsPrompt, describe(doc.Kind))
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(doc.ContentType, ";")[0]))

	switch {
	case strings.HasPrefix(mediaType, "text/"), mediaType == "application/json":
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: instructions + "\n\nDocument text:\n" + string(doc.Data),
		}, nil
	case mediaType == "image/png", mediaType == "image/jpeg", mediaType == "image/webp", mediaType == "image/gif":
		dataURL := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(doc.Data)
		return openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: instructions},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto}},
			},
		}, nil
	default:
		return openai.ChatCompletionMessage{}, fmt.Errorf("%w: %q", ErrUnsupportedContent, doc.ContentType)
	}
}

func describe(kind Kind) string {
	switch kind {
	case KindReceipt:
		return "receipt"
	case KindProforma:
		return "proforma invoice"
	default:
		return "document"
	}
}

type rawItem struct {
	Description string          `json:"description"`
	Quantity    float64         `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type rawFields struct {
	VendorName    string              `json:"vendor_name"`
	VendorAddress string              `json:"vendor_address"`
	TotalAmount   decimal.NullDecimal `json:"total_amount"`
	Currency      string              `json:"currency"`
	PaymentTerms  string              `json:"payment_terms"`
	Items         []rawItem           `json:"items"`
}

// parseFields decodes the model output, tolerating prose around the JSON object.
func parseFields(content string) (*Fields, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("extraction result is not JSON")
	}

	var raw rawFields
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse extraction result: %w", err)
	}

	fields := &Fields{
		VendorName:    strings.TrimSpace(raw.VendorName),
		VendorAddress: strings.TrimSpace(raw.VendorAddress),
		TotalAmount:   raw.TotalAmount,
		Currency:      strings.ToUpper(strings.TrimSpace(raw.Currency)),
		PaymentTerms:  strings.TrimSpace(raw.PaymentTerms),
	}
	for _, it := range raw.Items {
		fields.Items = append(fields.Items, model.ExtractedItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    int(math.Round(it.Quantity)),
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return fields, nil
}
