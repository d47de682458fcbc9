package trader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"pump-sniper/internal/domain"
	"pump-sniper/internal/solana"
	"pump-sniper/internal/wallet"
)

// balanceCushionSOL is added to the required balance on buys to cover
// network fees and rent.
const balanceCushionSOL = 0.002

// broadcastRetries is the forwarding retry count passed to sendTransaction.
const broadcastRetries = 3

// LocalOptions configures the self-signed submission pipeline.
type LocalOptions struct {
	Endpoints      []string // ordered candidate build endpoints
	Wallet         *wallet.Wallet
	RPC            *solana.Client
	Attempts       int           // tries per endpoint, defaults to DefaultAttempts
	BackoffStep    time.Duration // defaults to DefaultBackoffStep
	AttemptTimeout time.Duration // defaults to DefaultAttemptTimeout
	SkipPreflight  bool          // disables the balance check (tests)
	Log            *logrus.Logger
}

// NewLocal creates the self-signed Submitter: it requests an unsigned
// transaction from a build endpoint, signs it with the held key, and
// broadcasts it through the RPC client.
func NewLocal(opts LocalOptions) Submitter {
	if opts.Attempts == 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.BackoffStep == 0 {
		opts.BackoffStep = DefaultBackoffStep
	}
	if opts.AttemptTimeout == 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	http := newHTTPClient()

	build := func(form bool) *buildStrategy {
		return &buildStrategy{
			http:   http,
			wallet: opts.Wallet,
			rpc:    opts.RPC,
			form:   form,
		}
	}

	p := &pipeline{
		mode:           "local",
		endpoints:      opts.Endpoints,
		attempts:       opts.Attempts,
		backoffStep:    opts.BackoffStep,
		attemptTimeout: opts.AttemptTimeout,
		strategies:     []strategy{build(false), build(true)},
		log:            log.WithField("component", "trader"),
	}

	if !opts.SkipPreflight {
		p.preflight = func(ctx context.Context, req *domain.TradeRequest) error {
			return checkBalance(ctx, opts.RPC, opts.Wallet.Address(), req)
		}
	}

	return p
}

// checkBalance verifies the wallet can cover the buy plus a fee cushion.
// A balance lookup failure is not a reason to skip the trade.
func checkBalance(ctx context.Context, rpc *solana.Client, address string, req *domain.TradeRequest) error {
	balance, err := rpc.GetBalanceSOL(ctx, address)
	if err != nil {
		return nil
	}
	need := req.AmountSOL + req.PriorityFee + balanceCushionSOL
	if balance < need {
		return fmt.Errorf("%w: have %.4f SOL, need %.4f SOL", errInsufficientFunds, balance, need)
	}
	return nil
}

// buildStrategy requests an unsigned transaction (JSON or form encoded),
// signs it, and broadcasts it.
type buildStrategy struct {
	http   *resty.Client
	wallet *wallet.Wallet
	rpc    *solana.Client
	form   bool
}

func (s *buildStrategy) name() string {
	if s.form {
		return "build-form"
	}
	return "build-json"
}

func (s *buildStrategy) attempt(ctx context.Context, endpoint string, req *domain.TradeRequest) (string, error) {
	body := wireBody(req, s.wallet.Address())

	r := s.http.R().SetContext(ctx)
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
		return "", fmt.Errorf("build endpoint status %d: %s", resp.StatusCode(), truncate(resp.Body()))
	}

	txBytes, err := decodeTxPayload(resp.Body())
	if err != nil {
		return "", err
	}

	signed, err := s.wallet.SignTransaction(txBytes)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := s.rpc.SendTransaction(ctx, signed, broadcastRetries)
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}
	return sig, nil
}

// txJSONFields are the field names under which build endpoints have been
// observed to embed the base64 transaction blob.
var txJSONFields = []string{"transaction", "tx", "data"}

// decodeTxPayload extracts raw transaction bytes from a build endpoint
// response: either the body itself, or a base64 blob inside a JSON object.
func decodeTxPayload(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	if trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("parse build response: %w", err)
		}
		for _, key := range txJSONFields {
			raw, ok := fields[key]
			if !ok {
				continue
			}
			var b64 string
			if err := json.Unmarshal(raw, &b64); err != nil || b64 == "" {
				continue
			}
			decoded, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return nil, fmt.Errorf("decode %s field: %w", key, err)
			}
			return decoded, nil
		}
		return nil, fmt.Errorf("build response carries no transaction field")
	}

	// Raw binary payload.
	return trimmed, nil
}

// truncate bounds response bodies embedded in error messages.
func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
