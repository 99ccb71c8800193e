package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/metrics"
)

// Shopify webhook headers.
const (
	WebhookTopicHeader = "X-Shopify-Topic"
	WebhookShopHeader  = "X-Shopify-Shop-Domain"
	WebhookHMACHeader  = "X-Shopify-Hmac-Sha256"
)

// Privacy webhook topics.
const (
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
)

// maxWebhookBody bounds the payload read for HMAC verification.
const maxWebhookBody = 1 << 20

// WebhookPayload holds the fields of the privacy webhooks that are acted on.
type WebhookPayload struct {
	ShopDomain string `json:"shop_domain"`
	Customer   struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"customer"`
}

// Webhook handles POST /webhooks.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	topic := r.Header.Get(WebhookTopicHeader)

	status := http.StatusOK
	defer func() {
		metrics.Webhooks.WithLabelValues(topic, strconv.Itoa(status)).Inc()
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		status = http.StatusBadRequest
		writeJSON(w, status, map[string]string{"error": "failed to read body"})
		return
	}

	if h.shopify.APISecret != "" && !VerifyWebhook(body, r.Header.Get(WebhookHMACHeader), h.shopify.APISecret) {
		status = http.StatusUnauthorized
		writeJSON(w, status, map[string]string{"error": "invalid webhook signature"})
		return
	}

	shop := normalizeShop(r.Header.Get(WebhookShopHeader))
	if shop == "" {
		status = http.StatusBadRequest
		writeJSON(w, status, map[string]string{"error": WebhookShopHeader + " header is required"})
		return
	}

	var payload WebhookPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			status = http.StatusBadRequest
			writeJSON(w, status, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
	}

	switch topic {
	case TopicCustomersDataRequest:
		// Nothing is held beyond what the shop already has.
		slog.Info("customer data request",
			"store_id", shop,
			"customer_id", payload.Customer.ID,
		)

	case TopicCustomersRedact:
		email := payload.Customer.Email
		var removed int64
		if email != "" {
			removed, err = h.repo.RedactCustomer(ctx, shop, email)
			if err != nil {
				status = http.StatusInternalServerError
				h.writeError(w, r, err)
				return
			}
			if err := h.clearStoreContact(r, shop, email); err != nil {
				status = http.StatusInternalServerError
				h.writeError(w, r, err)
				return
			}
			h.invalidate(r, shop)
		}
		slog.Info("customer redacted",
			"store_id", shop,
			"customer_id", payload.Customer.ID,
			"orders_removed", removed,
		)

	case TopicShopRedact:
		if err := h.repo.DeleteStore(ctx, shop); err != nil {
			status = http.StatusInternalServerError
			h.writeError(w, r, err)
			return
		}
		h.invalidate(r, shop)
		h.publish(r, shop, domain.TopicStoreRedacted, map[string]string{"storeId": shop})
		slog.Info("shop redacted", "store_id", shop)

	default:
		slog.Debug("ignoring webhook topic",
			"store_id", shop,
			"topic", topic,
		)
	}

	writeJSON(w, status, map[string]bool{"success": true})
}

// clearStoreContact drops the store's session contact when it belongs to
// the redacted customer.
func (h *Handler) clearStoreContact(r *http.Request, shop, email string) error {
	store, err := h.repo.GetStore(r.Context(), shop)
	if err != nil {
		// The store may already be gone.
		return nil
	}
	if store.Email == "" || !strings.EqualFold(store.Email, email) {
		return nil
	}
	store.Email = ""
	store.AccessToken = ""
	return h.repo.SaveStore(r.Context(), store)
}

// VerifyWebhook reports whether signature is the base64 HMAC-SHA256 of body
// keyed with secret.
func VerifyWebhook(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// SignWebhook returns the signature VerifyWebhook accepts for body.
func SignWebhook(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
