package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Username: "api", Password: "secret"})
}

func requireBasicAuth(t *testing.T, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	if !ok || user != "api" || pass != "secret" {
		t.Errorf("missing or wrong basic auth: %q/%q", user, pass)
	}
}

func TestReceivers(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireBasicAuth(t, r)
		if r.URL.Path != "/get_receivers" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"u1": 5, "u2": 2})
	})

	got, err := c.Receivers(context.Background())
	if err != nil {
		t.Fatalf("Receivers error: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]int{"u1": 5, "u2": 2}) {
		t.Fatalf("Receivers = %v", got)
	}
}

func TestSendTextBody(t *testing.T) {
	t.Parallel()
	var got textMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireBasicAuth(t, r)
		if r.URL.Path != "/send_text_message" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	})

	if err := c.SendText(context.Background(), "u2", "session expired"); err != nil {
		t.Fatalf("SendText error: %v", err)
	}
	if got.UserID != "u2" || got.Message != "session expired" {
		t.Fatalf("body = %+v", got)
	}
}

func TestSendImageURLNon200(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "receiver offline", http.StatusServiceUnavailable)
	})
	if err := c.SendImageURL(context.Background(), "u1", "http://minio/x.png"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSendImageFileMultipart(t *testing.T) {
	t.Parallel()
	img := filepath.Join(t.TempDir(), "qr.png")
	if err := os.WriteFile(img, []byte("png-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireBasicAuth(t, r)
		if got := r.URL.Query().Get("user_id"); got != "u1" {
			t.Errorf("user_id = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart parse: %v", err)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		if hdr.Filename != "qr.png" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := c.SendImageFile(context.Background(), "u1", img); err != nil {
		t.Fatalf("SendImageFile error: %v", err)
	}
}
