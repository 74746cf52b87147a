package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfiscal/fisc/internal/common"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "defaults are valid",
			cfg:  Config{DatabasePath: "fisc.db", SimilarityThreshold: 0.8, CodeConflictPenalty: 20},
		},
		{
			name: "threshold at upper bound",
			cfg:  Config{DatabasePath: "fisc.db", SimilarityThreshold: 1.0, CodeConflictPenalty: 0},
		},
		{
			name:    "missing database path",
			cfg:     Config{SimilarityThreshold: 0.8, CodeConflictPenalty: 20},
			wantErr: common.ErrMissingConfig,
		},
		{
			name:    "zero threshold",
			cfg:     Config{DatabasePath: "fisc.db", SimilarityThreshold: 0, CodeConflictPenalty: 20},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name:    "threshold above one",
			cfg:     Config{DatabasePath: "fisc.db", SimilarityThreshold: 1.1, CodeConflictPenalty: 20},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name:    "negative penalty",
			cfg:     Config{DatabasePath: "fisc.db", SimilarityThreshold: 0.8, CodeConflictPenalty: -1},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name:    "penalty above hundred",
			cfg:     Config{DatabasePath: "fisc.db", SimilarityThreshold: 0.8, CodeConflictPenalty: 101},
			wantErr: common.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("FISC_TEST_DIR", "/data")

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "empty", path: "", want: ""},
		{name: "absolute unchanged", path: "/var/lib/fisc", want: "/var/lib/fisc"},
		{name: "tilde prefix", path: "~/budget", want: filepath.Join(home, "budget")},
		{name: "bare tilde", path: "~", want: home},
		{name: "env var", path: "$FISC_TEST_DIR/budget", want: "/data/budget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.path))
		})
	}
}
