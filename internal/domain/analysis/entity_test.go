package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complianceops/riskextract/internal/domain/documents"
)

func TestJobTransitionsForwardOnly(t *testing.T) {
	j := &AnalysisJob{ID: "j1", State: StateQueued}

	require.NoError(t, j.Transition(StateRunning))
	require.NoError(t, j.Transition(StateSucceeded))
	assert.True(t, j.State.Terminal())

	// terminal states accept nothing
	assert.Error(t, j.Transition(StateFailed))
	assert.Error(t, j.Transition(StateRunning))
}

func TestJobTransitionRejectsBackward(t *testing.T) {
	j := &AnalysisJob{ID: "j2", State: StateRunning}
	assert.Error(t, j.Transition(StateQueued))
	assert.Error(t, j.Transition(StateRunning))
}

func TestJobTransitionCanSkipToTerminal(t *testing.T) {
	j := &AnalysisJob{ID: "j3", State: StateQueued}
	require.NoError(t, j.Transition(StateFailed))
	assert.True(t, j.State.Terminal())
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{documents.ErrUnsupportedFormat, KindUnsupportedFormat},
		{fmt.Errorf("wrap: %w", documents.ErrCorruptDocument), KindCorruptDocument},
		{ErrExtractionUnavailable, KindExtractionUnavailable},
		{ErrMalformedAIResponse, KindMalformedAIResponse},
		{context.DeadlineExceeded, KindJobTimeout},
		{context.Canceled, KindCancelled},
		{errors.New("boom"), KindInternal},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, KindOf(c.err), "err=%v", c.err)
	}
}
