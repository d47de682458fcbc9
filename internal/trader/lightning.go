package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"pump-sniper/internal/domain"
)

// Lightning defaults differ from local mode: the hosted API both builds and
// submits, so it gets one more try with a slightly longer backoff step.
const (
	DefaultLightningAttempts    = 3
	DefaultLightningBackoffStep = 300 * time.Millisecond
)

// LightningOptions configures the delegated submission pipeline.
type LightningOptions struct {
	Endpoint       string // hosted execution API URL
	APIKey         string
	Attempts       int
	BackoffStep    time.Duration
	AttemptTimeout time.Duration
	Log            *logrus.Logger
}

// NewLightning creates the delegated Submitter: the hosted execution API
// signs and submits on the engine's behalf, authenticated by API key.
func NewLightning(opts LightningOptions) Submitter {
	if opts.Attempts == 0 {
		opts.Attempts = DefaultLightningAttempts
	}
	if opts.BackoffStep == 0 {
		opts.BackoffStep = DefaultLightningBackoffStep
	}
	if opts.AttemptTimeout == 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	http := newHTTPClient()

	return &pipeline{
		mode:           "lightning",
		endpoints:      []string{opts.Endpoint},
		attempts:       opts.Attempts,
		backoffStep:    opts.BackoffStep,
		attemptTimeout: opts.AttemptTimeout,
		strategies: []strategy{
			&delegatedStrategy{http: http, apiKey: opts.APIKey},
			&delegatedStrategy{http: http, apiKey: opts.APIKey, form: true},
		},
		log: log.WithField("component", "trader"),
	}
}

// delegatedStrategy posts the request to the hosted API and extracts the
// confirmation signature from the JSON response.
type delegatedStrategy struct {
	http   *resty.Client
	apiKey string
	form   bool
}

func (s *delegatedStrategy) name() string {
	if s.form {
		return "delegated-form"
	}
	return "delegated-json"
}

func (s *delegatedStrategy) attempt(ctx context.Context, endpoint string, req *domain.TradeRequest) (string, error) {
	body := wireBody(req, "") // public key implied by the API key
	body["skipPreflight"] = "true"
	delete(body, "publicKey")

	r := s.http.R().
		SetContext(ctx).
		SetQueryParam("api-key", s.apiKey)
	if s.form {
		r.SetFormData(formBody(body))
	} else {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := r.Post(endpoint)
	if err != nil {
		return "", fmt.Errorf("post trade request: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return "", fmt.Errorf("execution API status %d: %s", resp.StatusCode(), truncate(resp.Body()))
	}

	var parsed struct {
		Signature string   `json:"signature"`
		TxSig     string   `json:"txSig"`
		Errors    []string `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("parse execution response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return "", fmt.Errorf("execution API errors: %v", parsed.Errors)
	}

	sig := parsed.Signature
	if sig == "" {
		sig = parsed.TxSig
	}
	if sig == "" {
		return "", fmt.Errorf("execution response carries no signature")
	}
	return sig, nil
}

var _ Submitter = (*pipeline)(nil)
