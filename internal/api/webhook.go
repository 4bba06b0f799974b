/**
 * @description
 * Payment-confirmation webhook from the billing provider. The HMAC-SHA256 signature of the
 * raw body is checked before anything is decoded. Confirmations are idempotent per staging
 * token, so provider retries always receive 200 once the first delivery succeeded.
 */
package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
)

const (
	signatureHeader = "X-Billing-Signature"
	maxWebhookBody  = 1 << 20
)

// BillingWebhookHandler handles checkout callbacks.
type BillingWebhookHandler struct {
	gate   CreationGate
	secret string
	logger *slog.Logger
}

func NewBillingWebhookHandler(gate CreationGate, secret string, logger *slog.Logger) *BillingWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingWebhookHandler{gate: gate, secret: secret, logger: logger}
}

func (h *BillingWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	if !validSignature(h.secret, r.Header.Get(signatureHeader), body) {
		h.logger.Warn("billing webhook rejected: invalid signature", "remote_addr", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event domain.PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	event.StagingToken = strings.TrimSpace(event.StagingToken)

	logger := h.logger.With("event_id", event.ID, "event_type", event.Type, "staging_token", event.StagingToken)

	switch event.Type {
	case domain.PaymentCheckoutCompleted:
		if event.StagingToken == "" {
			http.Error(w, "staging_token is required", http.StatusBadRequest)
			return
		}
		listing, err := h.gate.ConfirmPayment(r.Context(), event.StagingToken)
		if err != nil {
			h.fail(w, logger, err)
			return
		}
		if listing != nil {
			logger.Info("checkout completed; listing created", "listing_id", listing.ID)
		}
	case domain.PaymentCheckoutExpired, domain.PaymentCheckoutFailed, domain.PaymentCheckoutCanceled:
		if event.StagingToken == "" {
			http.Error(w, "staging_token is required", http.StatusBadRequest)
			return
		}
		if err := h.gate.DiscardStaged(r.Context(), event.StagingToken); err != nil {
			h.fail(w, logger, err)
			return
		}
	default:
		logger.Info("ignoring unhandled billing event")
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}

func (h *BillingWebhookHandler) fail(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, domain.ErrStagingTokenNotFound) {
		logger.Warn("billing webhook for unknown staging token")
		http.Error(w, "Unknown staging token", http.StatusNotFound)
		return
	}
	logger.Error("billing webhook processing failed", "error", err)
	http.Error(w, "Internal server error during event processing", http.StatusInternalServerError)
}

// validSignature checks a hex HMAC-SHA256 of body, optionally prefixed with "sha256=".
// An empty secret rejects every request.
func validSignature(secret, header string, body []byte) bool {
	if secret == "" {
		return false
	}
	signature := strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	provided, err := hex.DecodeString(signature)
	if err != nil || len(provided) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
