package procore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestClient(serverURL string) *Client {
	// レート制限なし
	return NewClient(http.DefaultClient, serverURL, 0, 0, discardLogger())
}

func TestListProjects_SinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1.0/projects" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/rest/v1.0/projects")
		}
		if got := r.URL.Query().Get("company_id"); got != "4266" {
			t.Errorf("company_id = %q, want %q", got, "4266")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-abc" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer token-abc")
		}
		json.NewEncoder(w).Encode([]Project{
			{ID: 1, Name: "新宿オフィスビル", Active: true},
			{ID: 2, Name: "横浜倉庫改修", Active: false},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	projects, err := client.ListProjects(context.Background(), "token-abc", "4266")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("len(projects) = %d, want 2", len(projects))
	}
	if projects[0].Name != "新宿オフィスビル" {
		t.Errorf("projects[0].Name = %q, want %q", projects[0].Name, "新宿オフィスビル")
	}
}

func TestListProjects_PaginatesUntilShortPage(t *testing.T) {
	var requestedPages []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requestedPages = append(requestedPages, page)

		// ページサイズ2でページ1は満杯、ページ2は1件（最終ページ）
		switch page {
		case "1":
			json.NewEncoder(w).Encode([]Project{{ID: 1}, {ID: 2}})
		case "2":
			json.NewEncoder(w).Encode([]Project{{ID: 3}})
		default:
			t.Errorf("unexpected page requested: %q", page)
			json.NewEncoder(w).Encode([]Project{})
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.SetPageSize(2)

	projects, err := client.ListProjects(context.Background(), "token", "4266")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(projects) != 3 {
		t.Errorf("len(projects) = %d, want 3", len(projects))
	}
	if len(requestedPages) != 2 {
		t.Errorf("requested pages = %v, want [1 2]", requestedPages)
	}
}

func TestListProjects_Unauthorized_ReturnsErrUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.ListProjects(context.Background(), "stale-token", "4266")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestListProjects_ServerError_ReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.ListProjects(context.Background(), "token", "4266")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestListCommitments_SendsProjectID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1.0/commitments" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/rest/v1.0/commitments")
		}
		if got := r.URL.Query().Get("project_id"); got != "901" {
			t.Errorf("project_id = %q, want %q", got, "901")
		}
		json.NewEncoder(w).Encode([]Commitment{{ID: 11, Title: "電気工事"}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	commitments, err := client.ListCommitments(context.Background(), "token", "4266", 901)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(commitments) != 1 || commitments[0].Title != "電気工事" {
		t.Errorf("commitments = %+v, want 1 entry titled 電気工事", commitments)
	}
}

func TestGetCommitment_ReturnsSingleCommitment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1.0/commitments/77" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/rest/v1.0/commitments/77")
		}
		json.NewEncoder(w).Encode(Commitment{ID: 77, Status: "Approved"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	commitment, err := client.GetCommitment(context.Background(), "token", "4266", "901", "77")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if commitment.ID != 77 {
		t.Errorf("ID = %d, want 77", commitment.ID)
	}
	if commitment.Status != "Approved" {
		t.Errorf("Status = %q, want %q", commitment.Status, "Approved")
	}
}

func TestGetVendor_ReturnsVendor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1.0/vendors/500" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/rest/v1.0/vendors/500")
		}
		json.NewEncoder(w).Encode(Vendor{ID: 500, Name: "山田建設", EmailAddress: "info@yamada.example.com"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	vendor, err := client.GetVendor(context.Background(), "token", "4266", 500)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if vendor.DisplayName() != "山田建設" {
		t.Errorf("DisplayName = %q, want %q", vendor.DisplayName(), "山田建設")
	}
	if vendor.ContactEmail() != "info@yamada.example.com" {
		t.Errorf("ContactEmail = %q, want %q", vendor.ContactEmail(), "info@yamada.example.com")
	}
}

func TestGetJSON_ContextCancelled_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Project{})
	}))
	defer server.Close()

	// レートリミッター待機中のキャンセルを検証するため低レートで生成
	client := NewClient(http.DefaultClient, server.URL, 0.001, 1, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())

	// 1回目でバーストを消費
	if _, err := client.ListProjects(ctx, "token", "4266"); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	cancel()
	_, err := client.ListProjects(ctx, "token", "4266")
	if err == nil {
		t.Fatal("expected error after context cancel, got nil")
	}
}
