// Package kmsdk defines the contract of the messaging SDK boundary and a Client that turns
// its callback, status-string protocol into typed Go calls bounded by a context.
//
// A Boundary is the raw native-module surface: every call returns immediately and reports
// completion later through a callback carrying a status string and a payload. Nothing
// outside this package compares status strings.
package kmsdk

// Status strings reported by a Boundary.
const (
	StatusSuccess = "Success"
	StatusError   = "Error"
	StatusTrue    = "True"
	StatusFalse   = "False"
)

// Callback receives the completion of a call that reports a status and a payload. The
// payload is a human readable message, or the channel key for BuildConversation.
type Callback func(status, payload string)

// StatusCallback receives the completion of a call that reports only a status.
type StatusCallback func(status string)

// Boundary is the asynchronous messaging SDK surface. Implementations must eventually
// invoke the callback exactly once per call; the Client tolerates violations of this.
type Boundary interface {
	IsLoggedIn(cb StatusCallback)
	LoginUser(user User, cb Callback)
	LoginAsVisitor(appID string, cb Callback)
	Logout(cb StatusCallback)
	BuildConversation(attributes map[string]any, cb Callback)
	SendMessage(msg MessagePayload, cb Callback)
	OpenConversation(cb Callback)
	OpenParticularConversation(channelKey string, skipBackPress bool, cb Callback)
}
