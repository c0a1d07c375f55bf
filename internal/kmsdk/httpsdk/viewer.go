package httpsdk

import (
	"time"

	"github.com/tidwall/gjson"
)

// Conversation is the view model handed to a Viewer when a conversation is opened.
type Conversation struct {
	ChannelKey string
	GroupName  string
	Messages   []ViewMessage
}

// ViewMessage is one rendered message.
type ViewMessage struct {
	From      string
	Body      string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Viewer presents an opened conversation. skipBackPress tells the view not to intercept
// back navigation.
type Viewer interface {
	Show(conv Conversation, skipBackPress bool) error
}

// ViewerFunc adapts a function to Viewer.
type ViewerFunc func(conv Conversation, skipBackPress bool) error

func (f ViewerFunc) Show(conv Conversation, skipBackPress bool) error {
	return f(conv, skipBackPress)
}

type nopViewer struct{}

func (nopViewer) Show(Conversation, bool) error { return nil }

func parseConversation(body []byte) Conversation {
	res := gjson.ParseBytes(body)
	conv := Conversation{
		ChannelKey: res.Get("clientChannelKey").String(),
		GroupName:  res.Get("groupName").String(),
	}
	res.Get("messages").ForEach(func(_, m gjson.Result) bool {
		vm := ViewMessage{
			From: m.Get("from").String(),
			Body: m.Get("message").String(),
		}
		if meta := m.Get("metadata"); meta.IsObject() {
			vm.Metadata = map[string]string{}
			meta.ForEach(func(k, v gjson.Result) bool {
				vm.Metadata[k.String()] = v.String()
				return true
			})
		}
		if ts := m.Get("createdAt"); ts.Exists() {
			vm.CreatedAt, _ = time.Parse(time.RFC3339, ts.String())
		}
		conv.Messages = append(conv.Messages, vm)
		return true
	})
	return conv
}
