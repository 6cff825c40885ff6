package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/apperr"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/gen2brain/go-fitz"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const DefaultModel = openai.GPT4o

// Config holds receipt scanner configuration
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, e.g. for a proxy
	BaseURL string
}

// ReceiptScanner implements port.ReceiptScanner with a vision model.
// PDFs are rendered to an image of their first page before upload.
type ReceiptScanner struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewReceiptScanner creates a new receipt scanner
func NewReceiptScanner(cfg Config, logger *zap.Logger) *ReceiptScanner {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &ReceiptScanner{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

// Scan extracts suggested claim fields from a receipt
func (s *ReceiptScanner) Scan(ctx context.Context, data []byte, mimeType string) (*port.ReceiptExtraction, error) {
	if len(data) == 0 {
		return nil, apperr.Validation("receipt is empty")
	}

	imageData, imageType, err := s.toImage(data, mimeType)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Scanning receipt",
		zap.String("mime_type", mimeType),
		zap.Int("size", len(imageData)))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.1,
		MaxTokens:   1000,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You read expense receipts and answer with a single JSON object.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: buildScanPrompt(),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:%s;base64,%s", imageType, base64.StdEncoding.EncodeToString(imageData)),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		s.logger.Error("Receipt scan request failed", zap.Error(err))
		return nil, apperr.Dependency(err, "receipt scan failed")
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.Dependency(nil, "receipt scan returned no choices")
	}

	content := resp.Choices[0].Message.Content
	var result port.ReceiptExtraction
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		s.logger.Error("Failed to parse receipt scan response",
			zap.Error(err),
			zap.String("content", content))
		return nil, apperr.Dependency(err, "failed to parse receipt scan response")
	}

	normalizeExtraction(&result)

	s.logger.Info("Receipt scanned",
		zap.Float64("amount", result.Amount),
		zap.String("currency", result.Currency),
		zap.String("category", result.Category),
		zap.Float64("confidence", result.Confidence))

	return &result, nil
}

func (s *ReceiptScanner) toImage(data []byte, mimeType string) ([]byte, string, error) {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return data, "image/jpeg", nil
	case "image/png", "image/webp", "image/gif":
		return data, strings.ToLower(mimeType), nil
	case "application/pdf":
		img, err := renderFirstPage(data)
		if err != nil {
			s.logger.Warn("Failed to render PDF receipt", zap.Error(err))
			return nil, "", apperr.Validation("unreadable PDF receipt: %v", err)
		}
		return img, "image/jpeg", nil
	default:
		return nil, "", apperr.Validation("unsupported receipt type %q", mimeType)
	}
}

// renderFirstPage rasterizes page one of a PDF to JPEG
func renderFirstPage(pdf []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func buildScanPrompt() string {
	return fmt.Sprintf(`Extract the expense details from this receipt.

Return a JSON object with exactly these fields:
{
  "amount": number (grand total paid, no currency symbol),
  "currency": "ISO 4217 code, e.g. USD",
  "date": "YYYY-MM-DD",
  "merchant": "string",
  "category": one of %s,
  "description": "short description of the purchase",
  "items": ["line item names"],
  "confidence": number between 0.0 and 1.0
}

Use "" or 0 for anything you cannot read. Do not guess.`, strings.Join(quoted(entity.Categories), ", "))
}

func normalizeExtraction(r *port.ReceiptExtraction) {
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if !entity.IsValidCategory(r.Category) {
		r.Category = entity.CategoryOther
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
}

// extractJSON strips markdown fences and surrounding prose
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return content
	}
	return content[start : end+1]
}

func quoted(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}

var _ port.ReceiptScanner = (*ReceiptScanner)(nil)
