package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeList struct {
	ids map[string]bool
}

func (l *fakeList) Add(id string) error    { l.ids[id] = true; return nil }
func (l *fakeList) Remove(id string) error { delete(l.ids, id); return nil }
func (l *fakeList) All() ([]string, error) {
	var out []string
	for id := range l.ids {
		out = append(out, id)
	}
	return out, nil
}

func newTestServer(token string) (*httptest.Server, *fakeList) {
	list := &fakeList{ids: map[string]bool{}}
	h := NewHandler(token, list)
	r := chi.NewRouter()
	r.Route("/admin", h.Routes)
	return httptest.NewServer(r), list
}

func doReq(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestRequiresToken(t *testing.T) {
	srv, _ := newTestServer("secret")
	defer srv.Close()

	for _, tc := range []struct{ method, path, token string }{
		{http.MethodGet, "/admin/allowed", ""},
		{http.MethodGet, "/admin/allowed", "wrong"},
		{http.MethodPut, "/admin/allowed/1", "wrong"},
		{http.MethodDelete, "/admin/allowed/1", ""},
	} {
		resp := doReq(t, tc.method, srv.URL+tc.path, tc.token)
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("%s %s token=%q: status = %d, want 403", tc.method, tc.path, tc.token, resp.StatusCode)
		}
	}
}

func TestNoTokenConfiguredClosesSurface(t *testing.T) {
	srv, _ := newTestServer("")
	defer srv.Close()

	resp := doReq(t, http.MethodGet, srv.URL+"/admin/allowed", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when no admin token configured", resp.StatusCode)
	}
}

func TestAddListRemove(t *testing.T) {
	srv, list := newTestServer("secret")
	defer srv.Close()

	resp := doReq(t, http.MethodPut, srv.URL+"/admin/allowed/42", "secret")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	if !list.ids["42"] {
		t.Fatal("id not added")
	}

	resp = doReq(t, http.MethodGet, srv.URL+"/admin/allowed", "secret")
	var body map[string][]string
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if len(body["allowed"]) != 1 || body["allowed"][0] != "42" {
		t.Errorf("list = %v", body)
	}

	resp = doReq(t, http.MethodDelete, srv.URL+"/admin/allowed/42", "secret")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", resp.StatusCode)
	}
	if list.ids["42"] {
		t.Error("id not removed")
	}
}
