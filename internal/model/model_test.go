package model

import (
	"strings"
	"testing"
)

func TestProjectStatusFromActive(t *testing.T) {
	if got := ProjectStatusFromActive(true); got != ProjectStatusActive {
		t.Errorf("ProjectStatusFromActive(true) = %q, want %q", got, ProjectStatusActive)
	}
	if got := ProjectStatusFromActive(false); got != ProjectStatusInactive {
		t.Errorf("ProjectStatusFromActive(false) = %q, want %q", got, ProjectStatusInactive)
	}
}

func TestSubcontractStatusFromRemote(t *testing.T) {
	tests := []struct {
		remote string
		want   SubcontractStatus
	}{
		{"Approved", SubcontractStatusApproved},
		{"Out for Signature", SubcontractStatusOutForSignature},
		{"Out For Signature", SubcontractStatusOutForSignature},
		{"Draft", SubcontractStatusDraft},
		{"Complete", SubcontractStatusDraft},
		{"", SubcontractStatusDraft},
		{"unknown-status", SubcontractStatusDraft},
	}

	for _, tt := range tests {
		if got := SubcontractStatusFromRemote(tt.remote); got != tt.want {
			t.Errorf("SubcontractStatusFromRemote(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestSyncStatusValues(t *testing.T) {
	tests := []struct {
		status SyncStatus
		want   string
	}{
		{SyncStatusPending, "pending"},
		{SyncStatusProcessing, "processing"},
		{SyncStatusCompleted, "completed"},
		{SyncStatusFailed, "failed"},
	}

	for _, tt := range tests {
		if got := string(tt.status); got != tt.want {
			t.Errorf("SyncStatus = %q, want %q", got, tt.want)
		}
	}
}

func TestAPIError_Error(t *testing.T) {
	err := NewNotConnectedError()

	if err.Code != ErrCodeNotConnected {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeNotConnected)
	}
	if err.Category != "auth" {
		t.Errorf("Category = %q, want %q", err.Category, "auth")
	}
	if !strings.Contains(err.Error(), ErrCodeNotConnected) {
		t.Errorf("Error() = %q, want it to contain %q", err.Error(), ErrCodeNotConnected)
	}
}

func TestAPIError_Constructors(t *testing.T) {
	tests := []struct {
		name         string
		err          *APIError
		wantCode     string
		wantCategory string
	}{
		{"reconnect required", NewReconnectRequiredError(), ErrCodeReconnectRequired, "auth"},
		{"remote fetch failed", NewRemoteFetchFailedError("status 502"), ErrCodeRemoteFetchFailed, "sync"},
		{"sync failed", NewSyncFailedError("db error"), ErrCodeSyncFailed, "sync"},
		{"invalid state", NewInvalidStateError(), ErrCodeInvalidState, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", tt.err.Category, tt.wantCategory)
			}
			if tt.err.Message == "" {
				t.Error("expected non-empty Message")
			}
			if tt.err.Action == "" {
				t.Error("expected non-empty Action")
			}
		})
	}
}

func TestNewRemoteFetchFailedError_IncludesReason(t *testing.T) {
	err := NewRemoteFetchFailedError("status 503")
	if !strings.Contains(err.Message, "status 503") {
		t.Errorf("Message = %q, want it to contain the reason", err.Message)
	}
}

func TestUnknownVendorName(t *testing.T) {
	if UnknownVendorName != "Unknown" {
		t.Errorf("UnknownVendorName = %q, want %q", UnknownVendorName, "Unknown")
	}
}
