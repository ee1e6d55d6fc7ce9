// Package ocr implements the OCR Client external collaborator:
// HTTP POST of a per-page PDF, structured field results back.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Result is the parsed OCR response shape: {fields:
// {name→{value,confidence,field_type}}, overall_document_confidence,
// duration_ms, coversheet_type, doc_type, raw}.
type Result struct {
	Fields                     map[string]Field `json:"fields"`
	OverallDocumentConfidence  float64           `json:"overall_document_confidence"`
	DurationMS                 int64             `json:"duration_ms"`
	CoversheetType             string            `json:"coversheet_type"`
	DocType                    string            `json:"doc_type"`
	Raw                        json.RawMessage   `json:"raw,omitempty"`
}

type Field struct {
	Value      interface{} `json:"value"`
	Confidence float64     `json:"confidence"`
	FieldType  string      `json:"field_type"`
}

// Config tunes the HTTP client: the total per-request timeout and the
// retry count are configuration knobs; there is no separate
// connection timeout setting.
type Config struct {
	Endpoint       string
	RequestTimeout time.Duration
	MaxRetries     int
}

// Client submits pages to the OCR service. The transport is configured
// for HTTP/2-over-TLS negotiation on top of a standard *http.Transport;
// plain-HTTP/1.1 endpoints still work unmodified since
// ConfigureTransport only changes TLS-protocol negotiation, not
// cleartext behavior.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

func NewClient(cfg Config) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	// Best effort: only TLS endpoints benefit, and ConfigureTransport
	// never fails in a way that should block client construction.
	_ = http2.ConfigureTransport(transport)

	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.RequestTimeout},
		cfg:        cfg,
	}
}

// SubmitPage POSTs one page's PDF bytes and returns the parsed result,
// retrying transient I/O failures locally up to cfg.MaxRetries times
// rather than surfacing them to the caller.
func (c *Client) SubmitPage(ctx context.Context, pageName string, pdfBytes []byte) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		result, err := c.submitOnce(ctx, pageName, pdfBytes)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("ocr submit %s: %w", pageName, lastErr)
}

func (c *Client) submitOnce(ctx context.Context, pageName string, pdfBytes []byte) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", pageName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(pdfBytes); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}
	return &result, nil
}
