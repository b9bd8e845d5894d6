package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProviderComplete(t *testing.T) {
	p := NewMockProvider()

	out, err := p.Complete(context.Background(), "What is a widget?", "any-model")
	require.NoError(t, err)
	assert.Equal(t, "Response based on: What is a widget?...", out)
}

func TestMockProviderCompleteTruncatesLongPrompt(t *testing.T) {
	p := NewMockProvider()
	prompt := strings.Repeat("x", 300)

	out, err := p.Complete(context.Background(), prompt, "")
	require.NoError(t, err)
	assert.Equal(t, "Response based on: "+strings.Repeat("x", 200)+"...", out)
}

func TestMockProviderStreamConcatenates(t *testing.T) {
	p := NewMockProvider()
	p.StreamDelay = 0

	ch, err := p.StreamCompletion(context.Background(), "short prompt", "")
	require.NoError(t, err)

	var sb strings.Builder
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		sb.WriteString(chunk.Text)
	}
	assert.Equal(t, "Based on the provided documentation, here's what I found: short prompt...", sb.String())
}

func TestMockProviderStreamStopsOnCancel(t *testing.T) {
	p := NewMockProvider()
	p.StreamDelay = 0

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.StreamCompletion(ctx, strings.Repeat("y", 100), "")
	require.NoError(t, err)

	// Take one chunk, then cancel; the channel must still close.
	<-ch
	cancel()
	count := 1
	for range ch {
		count++
	}
	assert.Less(t, count, len(mockStreamPrefix)+103)
}
