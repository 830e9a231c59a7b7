package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/genba/internal/procore"
)

// --- モック定義 ---

type mockRemoteAPI struct {
	listProjectsFn    func(ctx context.Context, accessToken, companyID string) ([]procore.Project, error)
	listCommitmentsFn func(ctx context.Context, accessToken, companyID string, projectID int64) ([]procore.Commitment, error)
	getCommitmentFn   func(ctx context.Context, accessToken, companyID, projectID, commitmentID string) (*procore.Commitment, error)
	getVendorFn       func(ctx context.Context, accessToken, companyID string, vendorID int64) (*procore.Vendor, error)
}

func (m *mockRemoteAPI) ListProjects(ctx context.Context, accessToken, companyID string) ([]procore.Project, error) {
	if m.listProjectsFn != nil {
		return m.listProjectsFn(ctx, accessToken, companyID)
	}
	return nil, nil
}

func (m *mockRemoteAPI) ListCommitments(ctx context.Context, accessToken, companyID string, projectID int64) ([]procore.Commitment, error) {
	if m.listCommitmentsFn != nil {
		return m.listCommitmentsFn(ctx, accessToken, companyID, projectID)
	}
	return nil, nil
}

func (m *mockRemoteAPI) GetCommitment(ctx context.Context, accessToken, companyID, projectID, commitmentID string) (*procore.Commitment, error) {
	if m.getCommitmentFn != nil {
		return m.getCommitmentFn(ctx, accessToken, companyID, projectID, commitmentID)
	}
	return nil, nil
}

func (m *mockRemoteAPI) GetVendor(ctx context.Context, accessToken, companyID string, vendorID int64) (*procore.Vendor, error) {
	if m.getVendorFn != nil {
		return m.getVendorFn(ctx, accessToken, companyID, vendorID)
	}
	return nil, nil
}

type mockRefresher struct {
	refreshFn func(ctx context.Context, userID, refreshToken string) (*procore.TokenPair, error)
	calls     int
}

func (m *mockRefresher) Refresh(ctx context.Context, userID, refreshToken string) (*procore.TokenPair, error) {
	m.calls++
	if m.refreshFn != nil {
		return m.refreshFn(ctx, userID, refreshToken)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ RemoteAPI = (*mockRemoteAPI)(nil)
var _ TokenRefresher = (*mockRefresher)(nil)
var _ VendorAPI = (*AuthedClient)(nil)

// --- テスト ---

func TestAuthedClient_Success_NoRefresh(t *testing.T) {
	ctx := context.Background()

	api := &mockRemoteAPI{
		listProjectsFn: func(ctx context.Context, accessToken, companyID string) ([]procore.Project, error) {
			if accessToken != "access-1" {
				t.Errorf("access token = %q, want %q", accessToken, "access-1")
			}
			return []procore.Project{{ID: 1}}, nil
		},
	}
	refresher := &mockRefresher{}

	client := NewAuthedClient(api, refresher, "company-1", "user-1",
		procore.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	projects, err := client.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 1 {
		t.Errorf("projects count = %d, want 1", len(projects))
	}
	if refresher.calls != 0 {
		t.Errorf("refresh calls = %d, want 0", refresher.calls)
	}
}

func TestAuthedClient_401_RefreshesOnceAndRetries(t *testing.T) {
	ctx := context.Background()

	apiCalls := 0
	api := &mockRemoteAPI{
		listProjectsFn: func(ctx context.Context, accessToken, companyID string) ([]procore.Project, error) {
			apiCalls++
			if accessToken == "access-old" {
				return nil, procore.ErrUnauthorized
			}
			return []procore.Project{{ID: 1}, {ID: 2}}, nil
		},
	}
	refresher := &mockRefresher{
		refreshFn: func(ctx context.Context, userID, refreshToken string) (*procore.TokenPair, error) {
			if refreshToken != "refresh-old" {
				t.Errorf("refresh token = %q, want %q", refreshToken, "refresh-old")
			}
			return &procore.TokenPair{AccessToken: "access-new", RefreshToken: "refresh-new"}, nil
		},
	}

	client := NewAuthedClient(api, refresher, "company-1", "user-1",
		procore.TokenPair{AccessToken: "access-old", RefreshToken: "refresh-old"})

	projects, err := client.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 2 {
		t.Errorf("projects count = %d, want 2", len(projects))
	}

	// リフレッシュはちょうど1回、APIはちょうど2回（401 + 再試行）
	if refresher.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.calls)
	}
	if apiCalls != 2 {
		t.Errorf("api calls = %d, want 2", apiCalls)
	}

	// クライアントは新しいペアを保持していること
	if client.Tokens().AccessToken != "access-new" {
		t.Errorf("held access token = %q, want %q", client.Tokens().AccessToken, "access-new")
	}
	if client.Tokens().RefreshToken != "refresh-new" {
		t.Errorf("held refresh token = %q, want %q", client.Tokens().RefreshToken, "refresh-new")
	}
}

func TestAuthedClient_401AfterRetry_ReturnsErrRemoteUnauthorized(t *testing.T) {
	ctx := context.Background()

	apiCalls := 0
	api := &mockRemoteAPI{
		listProjectsFn: func(ctx context.Context, accessToken, companyID string) ([]procore.Project, error) {
			apiCalls++
			return nil, procore.ErrUnauthorized
		},
	}
	refresher := &mockRefresher{
		refreshFn: func(ctx context.Context, userID, refreshToken string) (*procore.TokenPair, error) {
			return &procore.TokenPair{AccessToken: "access-new", RefreshToken: "refresh-new"}, nil
		},
	}

	client := NewAuthedClient(api, refresher, "company-1", "user-1",
		procore.TokenPair{AccessToken: "access-old", RefreshToken: "refresh-old"})

	_, err := client.ListProjects(ctx)
	if !errors.Is(err, ErrRemoteUnauthorized) {
		t.Fatalf("error = %v, want ErrRemoteUnauthorized", err)
	}

	// 再試行は1回きり。無制限のリトライをしないこと
	if apiCalls != 2 {
		t.Errorf("api calls = %d, want 2", apiCalls)
	}
	if refresher.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.calls)
	}
}

func TestAuthedClient_RefreshFailure_Propagates(t *testing.T) {
	ctx := context.Background()

	api := &mockRemoteAPI{
		listProjectsFn: func(ctx context.Context, accessToken, companyID string) ([]procore.Project, error) {
			return nil, procore.ErrUnauthorized
		},
	}
	refresher := &mockRefresher{
		refreshFn: func(ctx context.Context, userID, refreshToken string) (*procore.TokenPair, error) {
			return nil, procore.ErrRefreshFailed
		},
	}

	client := NewAuthedClient(api, refresher, "company-1", "user-1",
		procore.TokenPair{AccessToken: "access-old", RefreshToken: "refresh-old"})

	_, err := client.ListProjects(ctx)
	if !errors.Is(err, procore.ErrRefreshFailed) {
		t.Errorf("error = %v, want ErrRefreshFailed", err)
	}
}

func TestAuthedClient_Non401Error_NoRefresh(t *testing.T) {
	ctx := context.Background()

	api := &mockRemoteAPI{
		listProjectsFn: func(ctx context.Context, accessToken, companyID string) ([]procore.Project, error) {
			return nil, &procore.StatusError{StatusCode: 500}
		},
	}
	refresher := &mockRefresher{}

	client := NewAuthedClient(api, refresher, "company-1", "user-1",
		procore.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	_, err := client.ListProjects(ctx)
	if err == nil {
		t.Fatal("expected error")
	}

	var statusErr *procore.StatusError
	if !errors.As(err, &statusErr) {
		t.Errorf("error = %v, want StatusError", err)
	}
	if refresher.calls != 0 {
		t.Errorf("refresh calls = %d, want 0 for non-401 error", refresher.calls)
	}
}
