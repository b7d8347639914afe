// Package plivo wraps the Plivo REST client for outbound call
// origination.
package plivo

import (
	"context"
	"fmt"

	"github.com/nyaruka/phonenumbers"
	plivosdk "github.com/plivo/plivo-go/v7"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Bridge/internal/config"
	"github.com/dkeye/Bridge/internal/core"
	"github.com/dkeye/Bridge/internal/domain"
)

// ValidateNumber parses and normalizes a destination to E.164. Numbers
// must carry their country code; there is no default region to guess.
func ValidateNumber(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrInvalidNumber, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", core.ErrInvalidNumber
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Dialer originates calls through the Plivo API. The answer URL points
// back at this server's answer webhook.
type Dialer struct {
	client    *plivosdk.Client
	from      string
	answerURL string
}

func NewDialer(cfg config.PlivoConfig, answerURL string) (*Dialer, error) {
	client, err := plivosdk.NewClient(cfg.AuthID, cfg.AuthToken, &plivosdk.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("plivo client: %w", err)
	}
	return &Dialer{client: client, from: cfg.Number, answerURL: answerURL}, nil
}

// Dial places the call. The destination must already be E.164; run
// ValidateNumber first.
func (d *Dialer) Dial(_ context.Context, toE164 string) (domain.CallID, error) {
	log.Info().
		Str("module", "adapters.plivo").
		Str("from", d.from).
		Str("to", toE164).
		Msg("placing outbound call")

	resp, err := d.client.Calls.Create(plivosdk.CallCreateParams{
		From:         d.from,
		To:           toE164,
		AnswerURL:    d.answerURL,
		AnswerMethod: "POST",
	})
	if err != nil {
		return "", fmt.Errorf("create call: %w", err)
	}
	return domain.CallID(fmt.Sprintf("%v", resp.RequestUUID)), nil
}
