package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/markdave123-py/Careerlyst/internal/poller"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, exitOK},
		{"timeout", fmt.Errorf("wait: %w", poller.ErrPollTimeout), exitTimeout},
		{"bad vector", &usageError{errors.New(`unknown research type "vibes"`)}, exitUsage},
		{"missing flag", errors.New(`required flag(s) "company" not set`), exitUsage},
		{"api down", errors.New("connection refused"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestGenerateRejectsUnknownVectorBeforeCallingAPI(t *testing.T) {
	// Nothing listens here; reaching the API would fail with exitError instead.
	rootCmd.SetArgs([]string{"generate", "--company", "acme", "--api", "http://127.0.0.1:1", "--vector", "recent_news"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Equal(t, exitUsage, execute(context.Background()))
}
