package molitsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient("test-key", nil)
	if err != nil {
		t.Fatal(err)
	}
	client.backoffBase = time.Millisecond
	client.listTimeout = 200 * time.Millisecond
	client.saleTimeout = 200 * time.Millisecond
	return client
}

func TestGetJSON_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := testClient(t)
	body, err := client.getJSON(context.Background(), srv.URL, url.Values{}, client.listTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", body)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("want 3 attempts, got %d", n)
	}
}

func TestGetJSON_ExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := testClient(t)
	_, err := client.getJSON(context.Background(), srv.URL, url.Values{}, client.listTimeout)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("want FetchError, got %v", err)
	}
	if fetchErr.Kind != FetchOther {
		t.Fatalf("want FetchOther, got %d", fetchErr.Kind)
	}
	if fetchErr.Attempts != 3 {
		t.Fatalf("want 3 attempts recorded, got %d", fetchErr.Attempts)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("want 3 requests, got %d", n)
	}
}

func TestGetJSON_TimeoutClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	client := testClient(t)
	client.listTimeout = 20 * time.Millisecond

	_, err := client.getJSON(context.Background(), srv.URL, url.Values{}, client.listTimeout)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("want FetchError, got %v", err)
	}
	if !fetchErr.Timeout() {
		t.Fatalf("want timeout classification, got %+v", fetchErr)
	}
}

func TestGetJSON_CancelDuringBackoffIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testClient(t)
	client.backoffBase = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := client.getJSON(ctx, srv.URL, url.Values{}, client.listTimeout)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("want FetchError, got %v", err)
	}
	if fetchErr.Timeout() {
		t.Fatalf("cancellation must not classify as timeout: %+v", fetchErr)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled cause, got %v", err)
	}
}

func TestNewClient_RejectsEmptyKey(t *testing.T) {
	if _, err := NewClient("  ", nil); err == nil {
		t.Fatal("want error for empty api key")
	}
}

func TestGetJSON_SendsServiceKey(t *testing.T) {
	var gotKey, gotLawd string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("serviceKey")
		gotLawd = r.URL.Query().Get("LAWD_CD")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := testClient(t)
	params := url.Values{}
	params.Set("LAWD_CD", "11110")
	if _, err := client.getJSON(context.Background(), srv.URL, params, client.listTimeout); err != nil {
		t.Fatal(err)
	}
	if gotKey != "test-key" || gotLawd != "11110" {
		t.Fatalf("query not forwarded: key=%q lawd=%q", gotKey, gotLawd)
	}
}
