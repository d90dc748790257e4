package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

const pageSeparator = "\f"

const transcribePrompt = `Transcribe this document completely and accurately.
Preserve headings, lists and table structure. Output plain text only.
Separate pages with a single form feed character (\f). Do not add commentary.`

// Extractor is the premium tier: it sends the document to a vision-capable
// model via an OpenAI-compatible API. Requests are paced with a client-side
// rate limiter; a 429 from the provider is still surfaced as ErrRateLimited
// so the controller escalates instead of retrying in place.
type Extractor struct {
	client  *openai.Client
	limiter *rate.Limiter
}

type Config struct {
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
}

func New(cfg Config) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &Extractor{
		client:  openai.NewClientWithConfig(clientCfg),
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
	}
}

func (e *Extractor) Tier() domain.ExtractionTier {
	return domain.TierPremium
}

func (e *Extractor) Extract(ctx context.Context, req ports.TierExtractRequest) (ports.TierPages, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return ports.TierPages{}, err
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: transcribePrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL(req.Filename, req.Data),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return ports.TierPages{}, classifyAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return ports.TierPages{}, domain.WrapError(
			domain.ErrExtractionEmpty,
			"vision extract",
			errors.New("empty completion response"),
		)
	}

	pages := splitPages(resp.Choices[0].Message.Content)
	if len(pages) == 0 {
		return ports.TierPages{}, domain.WrapError(
			domain.ErrExtractionEmpty,
			"vision extract",
			errors.New("model returned no text"),
		)
	}

	return ports.TierPages{
		Pages:    pages,
		Cost:     float64(len(pages)) * req.Config.CostPerPage,
		Duration: time.Since(start).Seconds(),
	}, nil
}

func splitPages(content string) []string {
	raw := strings.Split(content, pageSeparator)
	pages := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			pages = append(pages, p)
		}
	}
	return pages
}

func dataURL(filename string, data []byte) string {
	mimeType := mime.TypeByExtension(filepath.Ext(filename))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func classifyAPIError(err error) error {
	statusCode := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		statusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		statusCode = reqErr.HTTPStatusCode
	}

	if statusCode == http.StatusTooManyRequests {
		return domain.WrapError(domain.ErrRateLimited, "vision extract", err)
	}
	return domain.WrapError(domain.ErrTierUnavailable, "vision extract", err)
}
