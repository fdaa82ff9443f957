package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGet_DecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[1,2,3]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", nil)
	var out struct {
		Data []int `json:"data"`
	}
	if err := c.Get(context.Background(), "/chat-management", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out.Data) != 3 {
		t.Fatalf("bad decode: %+v", out)
	}
}

func TestNon2xx_ReturnsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "room not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	err := c.Get(context.Background(), "/chat-management/thread/NOPE", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *transport.Error, got %T", err)
	}
	if terr.Status != http.StatusNotFound {
		t.Fatalf("status = %d", terr.Status)
	}
	if terr.Message != "room not found" {
		t.Fatalf("message = %q", terr.Message)
	}
}

func TestNetworkError_HasZeroStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "", nil)
	err := c.Get(context.Background(), "/chat-management", nil)
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *transport.Error, got %T", err)
	}
	if terr.Status != 0 {
		t.Fatalf("network failure should have no status, got %d", terr.Status)
	}
}

func TestPostMultipart_FieldsAndFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("room"); got != "POS-ALPHA" {
			t.Errorf("room = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			f.Close()
			if hdr.Filename != "report.pdf" {
				t.Errorf("filename = %q", hdr.Filename)
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	err := c.PostMultipart(context.Background(), "/chat-management/send",
		map[string]string{"room": "POS-ALPHA"},
		&File{Name: "report.pdf", Data: []byte("pdf-bytes")},
		nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
}

func TestPostMultipart_NoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("file"); err == nil {
			t.Errorf("unexpected file part")
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	if err := c.PostMultipart(context.Background(), "/send", map[string]string{"message": "halo"}, nil, nil); err != nil {
		t.Fatalf("post: %v", err)
	}
}

func TestDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	if err := c.Delete(context.Background(), "/chat-management/42", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
