package runtimecheck

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/system"
	"github.com/rs/zerolog"
)

type fakeAPI struct {
	mu        sync.Mutex
	failPings int
	pings     int
	info      system.Info
	infoErr   error
	closed    bool
}

func (f *fakeAPI) Ping(ctx context.Context) (types.Ping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if f.pings <= f.failPings {
		return types.Ping{}, errors.New("connection refused")
	}
	return types.Ping{APIVersion: "1.47"}, nil
}

func (f *fakeAPI) Info(ctx context.Context) (system.Info, error) {
	return f.info, f.infoErr
}

func (f *fakeAPI) Close() error {
	f.closed = true
	return nil
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		api     *fakeAPI
		want    string
		wantErr string
	}{
		{
			name: "ready immediately",
			api:  &fakeAPI{info: system.Info{ServerVersion: "27.3.1", LoggingDriver: "json-file"}},
			want: "server 27.3.1, logging driver json-file",
		},
		{
			name: "ready after retries",
			api:  &fakeAPI{failPings: 2, info: system.Info{ServerVersion: "27.3.1", LoggingDriver: "json-file"}},
			want: "server 27.3.1, logging driver json-file",
		},
		{
			name:    "wrong logging driver",
			api:     &fakeAPI{info: system.Info{LoggingDriver: "journald"}},
			wantErr: `logging driver is "journald"`,
		},
		{
			name:    "info fails",
			api:     &fakeAPI{infoErr: errors.New("permission denied")},
			wantErr: "failed to read daemon info",
		},
		{
			name:    "never ready",
			api:     &fakeAPI{failPings: 1 << 30},
			wantErr: "daemon not reachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.api, zerolog.Nop(), WithTimeout(200*time.Millisecond), WithInterval(time.Millisecond))
			got, err := c.Verify(context.Background(), "json-file")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Verify() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWaitReadyHonoursCancellation(t *testing.T) {
	api := &fakeAPI{failPings: 1 << 30}
	c := New(api, zerolog.Nop(), WithTimeout(time.Hour), WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.WaitReady(ctx); err == nil {
		t.Fatal("WaitReady() succeeded on a cancelled context")
	}
}

func TestClose(t *testing.T) {
	api := &fakeAPI{}
	if err := New(api, zerolog.Nop()).Close(); err != nil {
		t.Fatal(err)
	}
	if !api.closed {
		t.Error("Close() did not close the API")
	}
}
