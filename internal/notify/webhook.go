package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"stats-backend/internal/config"
	"stats-backend/internal/constants"
	"stats-backend/internal/domain"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// WebhookNotifier posts embed-shaped reports to a webhook.
type WebhookNotifier struct {
	url    string
	client *fasthttp.Client
	logger zerolog.Logger
}

type embedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Fields      []embedField `json:"fields,omitempty"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

func NewWebhookNotifier(cfg *config.Config, logger zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url: cfg.AlertWebhookURL,
		client: &fasthttp.Client{
			ReadTimeout:         constants.NotifyTimeout,
			WriteTimeout:        constants.NotifyTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

func (n *WebhookNotifier) ReportCorruption(ctx context.Context, report domain.CorruptionReport) error {
	names := make([]string, 0, len(report.Fields))
	for name := range report.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]embedField, 0, len(names))
	for _, name := range names {
		fields = append(fields, embedField{Name: name, Value: report.Fields[name]})
	}

	body, err := json.Marshal(webhookPayload{Embeds: []embed{{
		Title:       report.Title,
		Description: report.Description,
		Fields:      fields,
	}}})
	if err != nil {
		return fmt.Errorf("failed to encode corruption report: %w", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(n.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := n.client.DoTimeout(req, resp, constants.NotifyTimeout); err != nil {
		return fmt.Errorf("failed to deliver corruption report: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("corruption report rejected with status %d", resp.StatusCode())
	}

	n.logger.Debug().Str("title", report.Title).Msg("corruption report delivered")
	return nil
}
