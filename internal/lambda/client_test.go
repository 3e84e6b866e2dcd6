package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/northstar-app/northstar/internal/openai"
)

func TestSendSuccess(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"text": "proxy reply"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Send(context.Background(), Request{
		Messages:            []Message{{Role: "user", Content: "hi"}},
		AITier:              "standard",
		ShouldDetectActions: true,
		UserData:            UserData{Context: "background"},
		UserID:              "u1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Text != "proxy reply" {
		t.Errorf("text = %q", resp.Text)
	}
	if got.UserData.Context != "background" || !got.ShouldDetectActions || got.UserID != "u1" {
		t.Errorf("request = %+v", got)
	}
}

func TestSendNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Send(context.Background(), Request{})
	var trErr *openai.TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if trErr.Status != http.StatusBadGateway || trErr.Body != "upstream unavailable" {
		t.Errorf("err = %+v", trErr)
	}
}

func TestSendBadJSONIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Send(context.Background(), Request{})
	var protoErr *openai.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("err = %v, want ProtocolError", err)
	}
}
