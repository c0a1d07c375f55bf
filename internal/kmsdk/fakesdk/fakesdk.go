// Package fakesdk provides a scriptable in-memory kmsdk.Boundary. It records every call
// and completion in order, answers asynchronously on its own goroutine, and can be told
// to fail or to never answer a given call.
package fakesdk

import (
	"fmt"
	"sync"

	"github.com/kmchat/kmchat/internal/kmsdk"
)

// Call names a boundary operation.
type Call string

const (
	CallIsLoggedIn        Call = "isLoggedIn"
	CallLoginUser         Call = "loginUser"
	CallLoginAsVisitor    Call = "loginAsVisitor"
	CallLogout            Call = "logout"
	CallBuildConversation Call = "buildConversation"
	CallSendMessage       Call = "sendMessage"
	CallOpenConversation  Call = "openConversation"
	CallOpenParticular    Call = "openParticularConversation"
)

// Phase distinguishes a call being issued from its callback firing.
type Phase string

const (
	Invoked   Phase = "invoked"
	Completed Phase = "completed"
)

// Event is one entry of the boundary log.
type Event struct {
	Call   Call
	Phase  Phase
	Status string
}

func (e Event) String() string {
	if e.Phase == Completed {
		return fmt.Sprintf("%s:%s(%s)", e.Call, e.Phase, e.Status)
	}
	return fmt.Sprintf("%s:%s", e.Call, e.Phase)
}

// Response scripts the answer to one call. A held response never calls back.
type Response struct {
	Status  string
	Payload string
	Hold    bool
}

// Succeed returns a success response with the given payload.
func Succeed(payload string) Response {
	return Response{Status: kmsdk.StatusSuccess, Payload: payload}
}

// Fail returns an error response carrying a backend message.
func Fail(message string) Response {
	return Response{Status: kmsdk.StatusError, Payload: message}
}

// Hold returns a response that never completes.
func Hold() Response {
	return Response{Hold: true}
}

// Boundary is the fake. The zero value is not usable; call New.
type Boundary struct {
	mu       sync.Mutex
	loggedIn bool
	scripted map[Call][]Response
	events   []Event
	nextKey  int
	wg       sync.WaitGroup

	// Captured arguments of the most recent calls.
	LastUser          kmsdk.User
	LastVisitorAppID  string
	LastAttributes    map[string]any
	LastMessage       kmsdk.MessagePayload
	LastOpenedKey     string
	LastSkipBackPress bool
}

var _ kmsdk.Boundary = (*Boundary)(nil)

// New returns a fake that is logged out and answers every call successfully.
func New() *Boundary {
	return &Boundary{
		scripted: make(map[Call][]Response),
	}
}

// LoggedIn sets the session state reported by IsLoggedIn.
func (b *Boundary) LoggedIn(v bool) *Boundary {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loggedIn = v
	return b
}

// IsSessionActive reports the fake's current session state.
func (b *Boundary) IsSessionActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loggedIn
}

// On queues responses for call. Queued responses are consumed in order; once exhausted the
// default behaviour applies again.
func (b *Boundary) On(call Call, responses ...Response) *Boundary {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripted[call] = append(b.scripted[call], responses...)
	return b
}

// Events returns a copy of the boundary log.
func (b *Boundary) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Calls returns the invoked calls in order.
func (b *Boundary) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var calls []Call
	for _, e := range b.events {
		if e.Phase == Invoked {
			calls = append(calls, e.Call)
		}
	}
	return calls
}

// Count returns how many times call was invoked.
func (b *Boundary) Count(call Call) int {
	n := 0
	for _, c := range b.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Wait blocks until every non-held callback has been delivered.
func (b *Boundary) Wait() {
	b.wg.Wait()
}

// invoke records the call, resolves its response under the lock and completes it
// asynchronously. onSuccess runs under the lock when the resolved status is a success.
func (b *Boundary) invoke(call Call, def func() Response, onSuccess func(Response), cb kmsdk.Callback) {
	b.mu.Lock()
	b.events = append(b.events, Event{Call: call, Phase: Invoked})
	var resp Response
	if queue := b.scripted[call]; len(queue) > 0 {
		resp = queue[0]
		b.scripted[call] = queue[1:]
	} else {
		resp = def()
	}
	if resp.Hold {
		b.mu.Unlock()
		return
	}
	if onSuccess != nil && resp.Status != kmsdk.StatusError && resp.Status != "" {
		onSuccess(resp)
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		b.mu.Lock()
		b.events = append(b.events, Event{Call: call, Phase: Completed, Status: resp.Status})
		b.mu.Unlock()
		cb(resp.Status, resp.Payload)
	}()
}

func (b *Boundary) IsLoggedIn(cb kmsdk.StatusCallback) {
	b.invoke(CallIsLoggedIn, func() Response {
		if b.loggedIn {
			return Response{Status: kmsdk.StatusTrue}
		}
		return Response{Status: kmsdk.StatusFalse}
	}, nil, func(status, _ string) { cb(status) })
}

func (b *Boundary) LoginUser(user kmsdk.User, cb kmsdk.Callback) {
	b.mu.Lock()
	b.LastUser = user
	b.mu.Unlock()
	b.invoke(CallLoginUser, func() Response {
		return Succeed("Login Success")
	}, func(r Response) {
		if r.Status == kmsdk.StatusSuccess {
			b.loggedIn = true
		}
	}, cb)
}

func (b *Boundary) LoginAsVisitor(appID string, cb kmsdk.Callback) {
	b.mu.Lock()
	b.LastVisitorAppID = appID
	b.mu.Unlock()
	b.invoke(CallLoginAsVisitor, func() Response {
		return Succeed("Visitor login success")
	}, func(Response) {
		b.loggedIn = true
	}, cb)
}

func (b *Boundary) Logout(cb kmsdk.StatusCallback) {
	b.invoke(CallLogout, func() Response {
		return Succeed("")
	}, func(r Response) {
		if r.Status == kmsdk.StatusSuccess {
			b.loggedIn = false
		}
	}, func(status, _ string) { cb(status) })
}

func (b *Boundary) BuildConversation(attributes map[string]any, cb kmsdk.Callback) {
	b.mu.Lock()
	b.LastAttributes = attributes
	b.mu.Unlock()
	b.invoke(CallBuildConversation, func() Response {
		b.nextKey++
		return Succeed(fmt.Sprintf("CH%d", b.nextKey))
	}, nil, cb)
}

func (b *Boundary) SendMessage(msg kmsdk.MessagePayload, cb kmsdk.Callback) {
	b.mu.Lock()
	b.LastMessage = msg
	b.mu.Unlock()
	b.invoke(CallSendMessage, func() Response {
		return Succeed("Message sent")
	}, nil, cb)
}

func (b *Boundary) OpenConversation(cb kmsdk.Callback) {
	b.invoke(CallOpenConversation, func() Response {
		return Succeed("Conversation opened")
	}, nil, cb)
}

func (b *Boundary) OpenParticularConversation(channelKey string, skipBackPress bool, cb kmsdk.Callback) {
	b.mu.Lock()
	b.LastOpenedKey = channelKey
	b.LastSkipBackPress = skipBackPress
	b.mu.Unlock()
	b.invoke(CallOpenParticular, func() Response {
		return Succeed("Conversation opened")
	}, nil, cb)
}
