package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendPipelineRejectsIllegalTransitions(t *testing.T) {
	p := newSendPipeline(nil)
	assert.Panics(t, func() { p.advance(SendSending) })

	p = newSendPipeline(nil)
	p.advance(SendCreating)
	p.advance(SendSending)
	p.advance(SendOpening)
	p.advance(SendDone)
	assert.True(t, p.out.State.Terminal())
	assert.Panics(t, func() { p.advance(SendFailed) })
}

func TestSendPipelineFailRecordsStep(t *testing.T) {
	p := newSendPipeline(nil)
	p.advance(SendCreating)
	p.advance(SendSending)
	p.fail()
	assert.Equal(t, SendFailed, p.out.State)
	assert.Equal(t, SendSending, p.out.FailedAt)
	assert.Equal(t, []SendState{SendIdle, SendCreating, SendSending, SendFailed}, p.out.Trace)
}

func TestSendStateString(t *testing.T) {
	assert.Equal(t, "opening", SendOpening.String())
	assert.Equal(t, "SendState(42)", SendState(42).String())
	assert.False(t, SendIdle.Terminal())
}
