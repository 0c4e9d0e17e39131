package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxlab/warmstack/config"
	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/tracing"
)

type textGenService struct {
	config *config.TextGenConfig
	client *http.Client
}

func NewTextGenService(cfg *config.TextGenConfig) interfaces.TextGenerator {
	return &textGenService{
		config: cfg,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type outboundRequest struct {
	SenderName    string `json:"senderName"`
	RecipientName string `json:"recipientName"`
	SenderAddress string `json:"senderAddress"`
}

type replyRequest struct {
	ReplierName        string `json:"replierName"`
	OriginalSenderName string `json:"originalSenderName"`
	OriginalSubject    string `json:"originalSubject"`
	OriginalBody       string `json:"originalBody"`
}

// Outbound asks the generation API for a fresh conversation opener.
func (s *textGenService) Outbound(ctx context.Context, senderName, recipientName, senderAddress string) (*interfaces.GeneratedEmail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "textGenService.Outbound")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	request := outboundRequest{
		SenderName:    senderName,
		RecipientName: recipientName,
		SenderAddress: senderAddress,
	}
	tracing.LogObjectAsJson(span, "request", request)

	response, err := s.post(ctx, "/v1/generate/outbound", request)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	tracing.LogObjectAsJson(span, "response", response)
	return response, nil
}

// Reply asks for a contextual reply quoting the original message.
func (s *textGenService) Reply(ctx context.Context, replierName, originalSenderName, originalSubject, originalBody string) (*interfaces.GeneratedEmail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "textGenService.Reply")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	request := replyRequest{
		ReplierName:        replierName,
		OriginalSenderName: originalSenderName,
		OriginalSubject:    originalSubject,
		OriginalBody:       originalBody,
	}
	tracing.LogObjectAsJson(span, "request", request)

	response, err := s.post(ctx, "/v1/generate/reply", request)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	tracing.LogObjectAsJson(span, "response", response)
	return response, nil
}

func (s *textGenService) post(ctx context.Context, path string, request any) (*interfaces.GeneratedEmail, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.Url+path, bytes.NewBuffer(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.config.ApiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
	}

	var response interfaces.GeneratedEmail
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if response.Subject == "" && response.Body == "" {
		return nil, errors.New("generation API returned an empty email")
	}

	return &response, nil
}
