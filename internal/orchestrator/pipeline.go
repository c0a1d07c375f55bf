package orchestrator

import (
	"fmt"

	"github.com/kmchat/kmchat/internal/kmsdk"
)

// SendState is a state of the create-send-open message pipeline.
type SendState int

const (
	SendIdle SendState = iota
	SendCreating
	SendSending
	SendOpening
	SendDone
	SendFailed
)

var sendStateNames = map[SendState]string{
	SendIdle:     "idle",
	SendCreating: "creating",
	SendSending:  "sending",
	SendOpening:  "opening",
	SendDone:     "done",
	SendFailed:   "failed",
}

func (s SendState) String() string {
	if name, ok := sendStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SendState(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s SendState) Terminal() bool {
	return s == SendDone || s == SendFailed
}

var sendTransitions = map[SendState][]SendState{
	SendIdle:     {SendCreating},
	SendCreating: {SendSending, SendFailed},
	SendSending:  {SendOpening, SendFailed},
	SendOpening:  {SendDone, SendFailed},
}

// SendOutcome describes where a SendMessage run ended.
type SendOutcome struct {
	State      SendState
	FailedAt   SendState // the step that failed when State is SendFailed
	ChannelKey kmsdk.ChannelKey
	Delivered  bool // the message reached the backend; true even if opening failed
	Trace      []SendState
}

type sendPipeline struct {
	out          *SendOutcome
	onTransition func(from, to SendState)
}

func newSendPipeline(onTransition func(from, to SendState)) *sendPipeline {
	return &sendPipeline{
		out:          &SendOutcome{State: SendIdle, Trace: []SendState{SendIdle}},
		onTransition: onTransition,
	}
}

// advance moves to the next state. An illegal transition is a programming error.
func (p *sendPipeline) advance(to SendState) {
	from := p.out.State
	allowed := false
	for _, next := range sendTransitions[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		panic(fmt.Sprintf("orchestrator: illegal send transition %s -> %s", from, to))
	}
	p.out.State = to
	p.out.Trace = append(p.out.Trace, to)
	if p.onTransition != nil {
		p.onTransition(from, to)
	}
}

func (p *sendPipeline) fail() {
	p.out.FailedAt = p.out.State
	p.advance(SendFailed)
}
