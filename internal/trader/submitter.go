// Package trader turns buy and sell decisions into confirmed executions.
// Submission is modeled as an ordered list of encoding strategies tried
// against an ordered list of endpoints with bounded retries; the first
// usable confirmation short-circuits everything else. Failure is always a
// nil result, never an error that unwinds the caller.
package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"pump-sniper/internal/domain"
)

// Submitter executes trade requests. It is the single point of truth for
// whether a trade was attempted: callers must never infer success from
// elapsed time or absence of error.
type Submitter interface {
	// Submit executes the request. A nil result means the trade was not
	// executed; no error is ever returned past this boundary.
	Submit(ctx context.Context, req *domain.TradeRequest) *domain.TradeResult

	// Mode identifies the submission mode ("local" or "lightning").
	Mode() string
}

// errInsufficientFunds aborts a buy without retry. It is deliberately not
// exported; outside the package it is indistinguishable from any other
// failed submission.
var errInsufficientFunds = errors.New("insufficient funds for buy")

// strategy is one way of encoding a request and extracting a confirmation.
type strategy interface {
	name() string
	attempt(ctx context.Context, endpoint string, req *domain.TradeRequest) (string, error)
}

// pipeline drives strategies across endpoints with backoff between tries.
type pipeline struct {
	mode           string
	endpoints      []string
	attempts       int           // tries per endpoint, >= 2
	backoffStep    time.Duration // delay grows linearly with the attempt number
	attemptTimeout time.Duration // explicit per-attempt deadline
	strategies     []strategy
	preflight      func(ctx context.Context, req *domain.TradeRequest) error
	log            *logrus.Entry
}

// Default pipeline parameters.
const (
	DefaultAttempts       = 2
	DefaultBackoffStep    = 250 * time.Millisecond
	DefaultAttemptTimeout = 10 * time.Second
)

// Mode returns the submission mode.
func (p *pipeline) Mode() string {
	return p.mode
}

// Submit implements Submitter.
func (p *pipeline) Submit(ctx context.Context, req *domain.TradeRequest) *domain.TradeResult {
	log := p.log.WithFields(logrus.Fields{
		"side": req.Side,
		"mint": req.Mint,
	})

	if p.preflight != nil && req.Side == domain.SideBuy {
		if err := p.preflight(ctx, req); err != nil {
			log.WithError(err).Warn("buy aborted by preflight check")
			return nil
		}
	}

	tries := 0
	for _, endpoint := range p.endpoints {
		for attempt := 1; attempt <= p.attempts; attempt++ {
			for _, strat := range p.strategies {
				tries++

				attemptCtx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
				sig, err := strat.attempt(attemptCtx, endpoint, req)
				cancel()

				if err == nil && sig != "" {
					log.WithFields(logrus.Fields{
						"signature": sig,
						"endpoint":  endpoint,
						"tries":     tries,
					}).Info("trade confirmed")
					return &domain.TradeResult{
						Signature: sig,
						Endpoint:  endpoint,
						Attempts:  tries,
					}
				}

				log.WithError(err).WithFields(logrus.Fields{
					"endpoint": endpoint,
					"strategy": strat.name(),
					"attempt":  attempt,
				}).Warn("submission attempt failed")
			}

			// Backoff grows with the attempt number, skip after the last try.
			if attempt < p.attempts {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(p.backoffStep * time.Duration(attempt)):
				}
			}
		}
	}

	log.WithField("tries", tries).Error("all endpoints exhausted, trade not executed")
	return nil
}

// wireBody builds the execution-service request body shared by both modes.
func wireBody(req *domain.TradeRequest, publicKey string) map[string]interface{} {
	pool := req.Pool
	if pool == "" {
		pool = "auto"
	}
	return map[string]interface{}{
		"publicKey":        publicKey,
		"action":           string(req.Side),
		"mint":             req.Mint,
		"amount":           req.Amount(),
		"denominatedInSol": fmt.Sprintf("%t", req.DenominatedInSOL()),
		"slippage":         float64(req.SlippageBps) / 100,
		"priorityFee":      req.PriorityFee,
		"pool":             pool,
	}
}

// formBody converts the wire body to string form values.
func formBody(body map[string]interface{}) map[string]string {
	form := make(map[string]string, len(body))
	for k, v := range body {
		form[k] = fmt.Sprintf("%v", v)
	}
	return form
}

// newHTTPClient builds the shared resty client. Per-attempt deadlines come
// from the request context; resty-level retries stay disabled because the
// pipeline owns the retry policy.
func newHTTPClient() *resty.Client {
	return resty.New().
		SetHeader("Accept", "*/*").
		SetHeader("User-Agent", "pump-sniper/1.0").
		SetHeader("Origin", "https://pump.fun").
		SetHeader("Referer", "https://pump.fun/").
		SetRetryCount(0)
}
