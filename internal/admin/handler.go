// Package admin exposes the allow-list management API used when the relay
// runs in private mode.
package admin

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// List is the subset of allow-list operations the API needs.
type List interface {
	Add(id string) error
	Remove(id string) error
	All() ([]string, error)
}

type Handler struct {
	token string
	list  List
}

func NewHandler(token string, list List) *Handler {
	return &Handler{token: token, list: list}
}

// Routes mounts the allow-list endpoints. Every route requires the admin
// token; with no token configured the whole surface stays closed.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/allowed", h.HandleList)
	r.Put("/allowed/{id}", h.HandleAdd)
	r.Delete("/allowed/{id}", h.HandleRemove)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	got := r.Header.Get("Authorization")
	want := "Bearer " + h.token
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	ids, err := h.list.All()
	if err != nil {
		log.Printf("admin: listing allowed users: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"allowed": ids})
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.list.Add(id); err != nil {
		log.Printf("admin: adding %s: %v", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.list.Remove(id); err != nil {
		log.Printf("admin: removing %s: %v", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
