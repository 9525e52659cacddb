package driverapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientSolveHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/solve" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"2","score":2.5}`))
	}))
	defer srv.Close()

	c := NewClient("d0", srv.URL, DefaultHTTPTotalTimeout, DefaultResponseSizeLimit)
	resp, err := c.Solve(context.Background(), &SolveRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ID != "2" || resp.Score != 2.5 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewClient("d0", srv.URL, DefaultHTTPTotalTimeout, DefaultResponseSizeLimit)
	_, err := c.Solve(context.Background(), &SolveRequest{})
	var badStatus *BadStatusError
	if err == nil {
		t.Fatalf("expected error")
	}
	if !asBadStatus(err, &badStatus) {
		t.Fatalf("expected BadStatusError, got %T: %v", err, err)
	}
	if badStatus.Code != 500 {
		t.Fatalf("unexpected code: %d", badStatus.Code)
	}
}

func TestClientBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient("d0", srv.URL, DefaultHTTPTotalTimeout, DefaultResponseSizeLimit)
	_, err := c.Solve(context.Background(), &SolveRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "bad json") {
		t.Fatalf("expected bad json error, got: %v", err)
	}
}

func TestClientOversize(t *testing.T) {
	big := strings.Repeat("a", DefaultResponseSizeLimit+1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"` + big + `","score":1}`))
	}))
	defer srv.Close()

	c := NewClient("d0", srv.URL, DefaultHTTPTotalTimeout, DefaultResponseSizeLimit)
	_, err := c.Solve(context.Background(), &SolveRequest{})
	if err != ErrOversize {
		t.Fatalf("expected ErrOversize, got %v", err)
	}
}

func TestClientExecutePathIsSettle(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"received":true}`))
	}))
	defer srv.Close()

	c := NewClient("d0", srv.URL, DefaultHTTPTotalTimeout, DefaultResponseSizeLimit)
	_, err := c.Execute(context.Background(), "42", &ExecuteRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/settle/42" {
		t.Fatalf("expected /settle/42, got %q", gotPath)
	}
}

func asBadStatus(err error, target **BadStatusError) bool {
	if bs, ok := err.(*BadStatusError); ok {
		*target = bs
		return true
	}
	return false
}
