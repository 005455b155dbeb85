package discord

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
)

// MessageHandler is called for each inbound message event.
type MessageHandler func(msg InboundMessage)

type WebhookHandler struct {
	secret    string
	onMessage MessageHandler
}

func NewWebhookHandler(secret string, onMessage MessageHandler) *WebhookHandler {
	return &WebhookHandler{secret: secret, onMessage: onMessage}
}

// HandleIncoming accepts gateway POSTs carrying one message event each. The
// gateway authenticates with a shared secret header. Responses are returned
// asynchronously through the REST client, so this handler answers 202
// immediately once the event is accepted.
func (h *WebhookHandler) HandleIncoming(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Relay-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var msg InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		log.Printf("webhook: failed to decode payload: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if msg.AuthorID == "" || msg.ChannelID == "" || msg.Content == "" {
		http.Error(w, "missing fields", http.StatusBadRequest)
		return
	}

	h.onMessage(msg)
	w.WriteHeader(http.StatusAccepted)
}
