package vk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Edd-G/vkgate/pkg/config"
)

func testClientConfig(apiBase string) config.VKConfig {
	return config.VKConfig{
		AccessToken:    "tok",
		SecretKey:      "s",
		GroupID:        100,
		APIVersion:     "5.131",
		Lang:           "en",
		APIBase:        apiBase,
		SendRatePerSec: 1000,
	}
}

func TestCallAppendsAuthParams(t *testing.T) {
	t.Parallel()

	var gotPath, gotToken, gotVersion, gotLang, gotPeer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.PostFormValue("access_token")
		gotVersion = r.PostFormValue("v")
		gotLang = r.PostFormValue("lang")
		gotPeer = r.PostFormValue("peer_id")
		w.Write([]byte(`{"response":1}`))
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL))
	if err := client.SendMessage(context.Background(), map[string]interface{}{
		"peer_id": int64(42),
		"message": "hi",
	}); err != nil {
		t.Fatalf("send message: %v", err)
	}

	if gotPath != "/messages.send" {
		t.Fatalf("path mismatch: %s", gotPath)
	}
	if gotToken != "tok" || gotVersion != "5.131" || gotLang != "en" {
		t.Fatalf("auth params missing: token=%q v=%q lang=%q", gotToken, gotVersion, gotLang)
	}
	if gotPeer != "42" {
		t.Fatalf("peer_id mismatch: %q", gotPeer)
	}
}

func TestCallSurfacesAPIErrorEnvelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"error_code":5,"error_msg":"User authorization failed"}}`))
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL))
	_, err := client.Call(context.Background(), "messages.send", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != 5 || apiErr.Message != "User authorization failed" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestCallSurfacesHTTPStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL))
	_, err := client.Call(context.Background(), "messages.send", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("status mismatch: %d", apiErr.StatusCode)
	}
}

func TestSendTypingParams(t *testing.T) {
	t.Parallel()

	var gotUser, gotType, gotPeer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.PostFormValue("user_id")
		gotType = r.PostFormValue("type")
		gotPeer = r.PostFormValue("peer_id")
		w.Write([]byte(`{"response":1}`))
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL))
	if err := client.SendTyping(context.Background(), 42); err != nil {
		t.Fatalf("send typing: %v", err)
	}
	if gotUser != "100" || gotType != "typing" || gotPeer != "42" {
		t.Fatalf("unexpected params: user=%q type=%q peer=%q", gotUser, gotType, gotPeer)
	}
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users.get" {
			t.Errorf("path mismatch: %s", r.URL.Path)
		}
		w.Write([]byte(`{"response":[{"id":42,"first_name":"Ada","last_name":"L","screen_name":"ada"}]}`))
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL))
	user, err := client.GetUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.ID != 42 || user.FirstName != "Ada" || user.ScreenName != "ada" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.Raw["last_name"] != "L" {
		t.Fatalf("raw profile not retained: %v", user.Raw)
	}
}

func TestGetUserEmptyResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":[]}`))
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL))
	if _, err := client.GetUser(context.Background(), 42); err == nil {
		t.Fatalf("expected error for empty profile list")
	}
}
