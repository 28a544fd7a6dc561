package types

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/data"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "postgres", DataDir: "/tmp/data"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: "sqlite", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "sqlite with empty DataDir is valid at config level",
			config:  Config{Backend: "sqlite", DataDir: ""},
			wantErr: nil,
		},
		{
			name:    "negative busy timeout rejected",
			config:  Config{Backend: "sqlite", BusyTimeoutMS: -1},
			wantErr: ErrBusyTimeoutInvalid,
		},
		{
			name:    "backup before migrate needs a backup dir",
			config:  Config{Backend: "sqlite", BackupBeforeMigrate: true},
			wantErr: ErrBackupDirRequired,
		},
		{
			name:    "backup before migrate with dir",
			config:  Config{Backend: "sqlite", BackupBeforeMigrate: true, BackupDir: "/tmp/backups"},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigBusyTimeout(t *testing.T) {
	if got := (Config{}).BusyTimeout(); got != DefaultBusyTimeoutMS {
		t.Fatalf("expected default %d, got %d", DefaultBusyTimeoutMS, got)
	}
	if got := (Config{BusyTimeoutMS: 250}).BusyTimeout(); got != 250 {
		t.Fatalf("expected 250, got %d", got)
	}
}
