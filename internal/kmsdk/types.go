package kmsdk

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChannelKey is the backend-assigned opaque identifier of a conversation.
type ChannelKey string

func (k ChannelKey) String() string {
	return string(k)
}

// User is the credential bundle passed to LoginUser. It lives only for the duration of
// the call.
type User struct {
	UserID        string `json:"userId"`
	Password      string `json:"password"`
	ApplicationID string `json:"applicationId"`
}

// ConversationAttributes is the typed form of the BuildConversation attribute bundle.
// Keys the SDK does not model are kept in Extra and forwarded untouched.
type ConversationAttributes struct {
	CreateOnly           bool              `mapstructure:"createOnly"`
	AppID                string            `mapstructure:"appId"`
	GroupName            string            `mapstructure:"groupName"`
	AgentIDs             []string          `mapstructure:"agentIds"`
	BotIDs               []string          `mapstructure:"botIds"`
	ClientConversationID string            `mapstructure:"clientConversationId"`
	Metadata             map[string]string `mapstructure:"metadata"`
	Extra                map[string]any    `mapstructure:",remain"`
}

// Bundle converts the attributes into the loosely typed bundle a Boundary accepts. Zero
// values are omitted so an empty ConversationAttributes yields an empty bundle.
func (a ConversationAttributes) Bundle() map[string]any {
	bundle := make(map[string]any, len(a.Extra)+4)
	for k, v := range a.Extra {
		bundle[k] = v
	}
	if a.CreateOnly {
		bundle["createOnly"] = true
	}
	if a.AppID != "" {
		bundle["appId"] = a.AppID
	}
	if a.GroupName != "" {
		bundle["groupName"] = a.GroupName
	}
	if len(a.AgentIDs) > 0 {
		bundle["agentIds"] = a.AgentIDs
	}
	if len(a.BotIDs) > 0 {
		bundle["botIds"] = a.BotIDs
	}
	if a.ClientConversationID != "" {
		bundle["clientConversationId"] = a.ClientConversationID
	}
	if len(a.Metadata) > 0 {
		bundle["metadata"] = a.Metadata
	}
	return bundle
}

// DecodeAttributes parses a bundle into ConversationAttributes. String values such as
// "true" are accepted for boolean keys.
func DecodeAttributes(bundle map[string]any) (ConversationAttributes, error) {
	var attrs ConversationAttributes
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &attrs,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return attrs, err
	}
	if err := decoder.Decode(bundle); err != nil {
		return attrs, fmt.Errorf("invalid conversation attributes: %w", err)
	}
	return attrs, nil
}

// Message is a chat message pending delivery into a conversation.
type Message struct {
	ChannelKey ChannelKey
	Body       string
	Metadata   map[string]string
}

// MessagePayload is the wire form of a Message handed to the Boundary. Metadata is
// serialized to a JSON object string.
type MessagePayload struct {
	ChannelID       string `json:"channelID"`
	Message         string `json:"message"`
	MessageMetadata string `json:"messageMetadata"`
}

// Payload serializes the message metadata and returns the boundary payload.
func (m Message) Payload() (MessagePayload, error) {
	meta := m.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return MessagePayload{}, fmt.Errorf("serializing message metadata: %w", err)
	}
	return MessagePayload{
		ChannelID:       string(m.ChannelKey),
		Message:         m.Body,
		MessageMetadata: string(raw),
	}, nil
}

// ParseMetadata decodes a serialized metadata string.
func ParseMetadata(s string) (map[string]string, error) {
	out := map[string]string{}
	if s == "" {
		return out, nil
	}
	if err := json.UnmarshalFromString(s, &out); err != nil {
		return nil, fmt.Errorf("invalid message metadata: %w", err)
	}
	return out, nil
}
