// Package billing implements a concrete royalty.PaymentProvider for
// monthly creator payouts. It talks to Stripe's PaymentIntents API
// when a secret key is configured and falls back to a no-network
// sandbox provider otherwise, so the billing cycle is exercisable in
// development without live credentials.
package billing

import (
	"context"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// StripeProvider charges a creator's on-file payment method via the
// Stripe PaymentIntents API, grounded on the same "one sandbox, one
// real network implementation behind an interface" shape the original
// service uses for its payment integrations.
type StripeProvider struct {
	WebhookSecret string
}

// NewStripeProvider configures the package-level Stripe client and
// returns a provider holding the given webhook secret. No code in
// this repository verifies webhook signatures with it.
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{WebhookSecret: webhookSecret}
}

// Charge implements royalty.PaymentProvider. It charges amountCents in
// USD, off-session, against the payment method customerDefaultMethod
// resolves for userID (account onboarding is out of scope for the
// billing cycle itself).
func (p *StripeProvider) Charge(ctx context.Context, userID string, amountCents int64) (bool, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountCents),
		Currency:           stripe.String(string(stripe.CurrencyUSD)),
		Confirm:            stripe.Bool(true),
		PaymentMethod:      stripe.String(customerDefaultMethod(userID)),
		OffSession:         stripe.Bool(true),
		Description:        stripe.String(fmt.Sprintf("Brain royalty payout for creator %s", userID)),
	}
	intent, err := paymentintent.New(params)
	if err != nil {
		log.Printf("billing: stripe charge failed user=%s amount_cents=%d: %v", userID, amountCents, err)
		return false, nil
	}
	return intent.Status == stripe.PaymentIntentStatusSucceeded, nil
}

// customerDefaultMethod resolves userID to the Stripe payment method
// on file. A real deployment looks this up from the users table's
// stored customer ID; left as a named seam here since Stripe customer
// provisioning is outside §4.14's scope.
func customerDefaultMethod(userID string) string {
	return "pm_" + userID
}

// SandboxProvider is a deterministic, no-network PaymentProvider for
// local development and tests: it always succeeds unless the
// outstanding amount exceeds FailAboveCents.
type SandboxProvider struct {
	FailAboveCents int64
}

func (p *SandboxProvider) Charge(ctx context.Context, userID string, amountCents int64) (bool, error) {
	if p.FailAboveCents > 0 && amountCents > p.FailAboveCents {
		return false, nil
	}
	log.Printf("billing(sandbox): charged user=%s amount_cents=%d", userID, amountCents)
	return true, nil
}
