package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playbox/internal/config"
	"playbox/internal/playbox"
	"playbox/internal/ports/memory"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil, nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"}, nil)
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:    "rest",
		PlayBoxAPIURL:  "http://localhost:8080",
		PlayBoxTimeout: 3 * time.Second,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, RESTBackend, cfg.Type)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
}

func TestCreateBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
		check   func(t *testing.T, res *BackendResult)
	}{
		{
			name:   "memory",
			config: Config{Type: MemoryBackend},
			check: func(t *testing.T, res *BackendResult) {
				_, ok := res.Backend.(*memory.Store)
				assert.True(t, ok)
			},
		},
		{
			name:   "rest",
			config: Config{Type: RESTBackend, BaseURL: srv.URL},
			check: func(t *testing.T, res *BackendResult) {
				_, ok := res.Backend.(*playbox.Client)
				assert.True(t, ok)
			},
		},
		{
			name:    "memory with missing seed file",
			config:  Config{Type: MemoryBackend, SeedFile: "/nonexistent/seeds.csv"},
			wantErr: true,
		},
		{
			name:    "rest without url",
			config:  Config{Type: RESTBackend},
			wantErr: true,
		},
		{
			name:    "unknown",
			config:  Config{Type: "sheets"},
			wantErr: true,
		},
	}

	f := NewFactory(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateBackend(context.Background(), tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, res)
		})
	}
}
