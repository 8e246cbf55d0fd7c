package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/salloumtech/fatoora/internal/config"
)

const reportingPath = "/invoices/reporting/single"

// tokenEarlyRefresh makes a token count as expired this long before its
// real expiry, so a submission never rides a token that dies mid-flight.
const tokenEarlyRefresh = 5 * time.Minute

type reportRequest struct {
	InvoiceHash string `json:"invoiceHash"`
	Invoice     string `json:"invoice"`
}

type reportResponse struct {
	Status      string   `json:"status"`
	RequestID   string   `json:"requestID"`
	UUID        string   `json:"uuid"`
	InvoiceHash string   `json:"invoiceHash"`
	Warnings    []string `json:"warnings"`
	Errors      []string `json:"errors"`
}

type httpClient struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	log      *zap.Logger
}

// NewClient builds the reporting client. When no endpoint is configured it
// returns a simulator that accepts every document, which keeps local
// environments and seed scripts working without authority credentials.
func NewClient(cfg config.Config, log *zap.Logger) Client {
	if cfg.AuthorityEndpoint == "" {
		log.Warn("no authority endpoint configured, running in simulation mode")
		return &simulator{}
	}

	hc := &http.Client{Timeout: cfg.AuthorityTimeout}
	if cfg.AuthorityTokenURL != "" {
		cc := clientcredentials.Config{
			TokenURL:     cfg.AuthorityTokenURL,
			ClientID:     cfg.AuthorityClientID,
			ClientSecret: cfg.AuthorityClientSecret,
		}
		base := cc.TokenSource(context.Background())
		hc = &http.Client{
			Timeout: cfg.AuthorityTimeout,
			Transport: &oauth2.Transport{
				Source: oauth2.ReuseTokenSourceWithExpiry(nil, base, tokenEarlyRefresh),
			},
		}
	}

	return &httpClient{
		endpoint: strings.TrimRight(cfg.AuthorityEndpoint, "/"),
		client:   hc,
		timeout:  cfg.AuthorityTimeout,
		log:      log.Named("authority"),
	}
}

func (c *httpClient) Submit(ctx context.Context, docB64, hash string) (Outcome, error) {
	body, err := json.Marshal(reportRequest{InvoiceHash: hash, Invoice: docB64})
	if err != nil {
		return Outcome{}, fmt.Errorf("encode report request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+reportingPath, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("reporting request failed", zap.Error(err))
		return Outcome{Classification: Transient, Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Outcome{Classification: Transient, Message: err.Error()}, nil
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
		var parsed reportResponse
		_ = json.Unmarshal(raw, &parsed)
		id := parsed.RequestID
		if id == "" {
			id = parsed.UUID
		}
		if id == "" {
			id = uuid.NewString()
		}
		return Outcome{
			Classification: Accepted,
			AuthorityID:    id,
			Message:        parsed.Status,
			Warnings:       parsed.Warnings,
		}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The authority refused the document; keep its text verbatim so
		// the operator sees exactly what the receiver said.
		return Outcome{
			Classification: Rejected,
			Message:        fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}, nil

	default:
		return Outcome{
			Classification: Transient,
			Message:        fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}, nil
	}
}

// simulator accepts every document with a generated authority id.
type simulator struct{}

func (simulator) Submit(ctx context.Context, docB64, hash string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{Classification: Transient, Message: err.Error()}, nil
	}
	return Outcome{
		Classification: Accepted,
		AuthorityID:    uuid.NewString(),
		Message:        "SIMULATED",
	}, nil
}
