/**
 * @description
 * Billing-side models. The billing provider is a black box; only the entitlement
 * summary and the staged-submission bookkeeping are modelled here.
 */
package domain

import (
	"encoding/json"
	"time"
)

// EntitlementStatus is the state of a host's paid subscription.
type EntitlementStatus string

const (
	EntitlementActive   EntitlementStatus = "active"
	EntitlementTrialing EntitlementStatus = "trialing"
	EntitlementNone     EntitlementStatus = "none"
)

// Entitlement is the billing provider's view of a host's paid slots.
type Entitlement struct {
	Status   EntitlementStatus `json:"status"`
	Quantity int               `json:"quantity"`
}

// Paying reports whether the subscription currently grants slots.
func (e Entitlement) Paying() bool {
	return e.Status == EntitlementActive || e.Status == EntitlementTrialing
}

// StagedStatus tracks a submission held until payment confirmation.
type StagedStatus string

const (
	StagedPending    StagedStatus = "pending"
	StagedConsumed   StagedStatus = "consumed"
	StagedDiscarded  StagedStatus = "discarded"
	StagedConflicted StagedStatus = "conflicted"
)

// StagedSubmission is listing data waiting for an asynchronous checkout result.
type StagedSubmission struct {
	Token      string          `json:"token"`
	HostID     string          `json:"host_id"`
	Payload    json.RawMessage `json:"payload"`
	Status     StagedStatus    `json:"status"`
	ListingID  *string         `json:"listing_id,omitempty"`
	ExpiresAt  time.Time       `json:"expires_at"`
	ConsumedAt *time.Time      `json:"consumed_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CheckoutRedirect is returned to the host when a listing must be paid for first.
type CheckoutRedirect struct {
	StagingToken string `json:"staging_token"`
	CheckoutURL  string `json:"checkout_url"`
}

// CreateResult is the outcome of the creation gate: exactly one field is set.
type CreateResult struct {
	Listing  *Listing          `json:"listing,omitempty"`
	Checkout *CheckoutRedirect `json:"checkout,omitempty"`
}

// PaymentEvent is the billing provider's checkout callback.
type PaymentEvent struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	StagingToken string `json:"staging_token"`
	HostID       string `json:"host_id"`
}

const (
	PaymentCheckoutCompleted = "checkout.completed"
	PaymentCheckoutExpired   = "checkout.expired"
	PaymentCheckoutFailed    = "checkout.failed"
	PaymentCheckoutCanceled  = "checkout.canceled"
)

// CheckoutRequest asks the billing provider for a hosted checkout session.
type CheckoutRequest struct {
	HostID       string `json:"host_id"`
	Quantity     int    `json:"quantity"`
	StagingToken string `json:"staging_token"`
	SuccessURL   string `json:"success_url,omitempty"`
	CancelURL    string `json:"cancel_url,omitempty"`
}
