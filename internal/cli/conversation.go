package cli

import (
	"strings"

	"github.com/kmchat/kmchat/internal/common/apperrors"
	"github.com/kmchat/kmchat/internal/kmsdk"
	"github.com/spf13/cobra"
)

// Sample metadata attached by send when no --meta is given.
var defaultMessageMetadata = map[string]string{
	"Name": "Alex Williams",
	"ID":   "X123Y24",
}

var errBadKeyValue = apperrors.New("expected key=value").SetExitCode(apperrors.ExitValidation)

// parseKeyValues turns repeated key=value flags into a map. Later keys win.
func parseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errBadKeyValue.Msg("expected key=value, got " + pair)
		}
		out[k] = v
	}
	return out, nil
}

// attributesFromFlags decodes --attr pairs into conversation attributes. Comma separated
// values become lists for the list valued keys.
func attributesFromFlags(pairs []string, appID string) (kmsdk.ConversationAttributes, error) {
	kv, err := parseKeyValues(pairs)
	if err != nil {
		return kmsdk.ConversationAttributes{}, err
	}
	bundle := make(map[string]any, len(kv))
	for k, v := range kv {
		switch k {
		case "agentIds", "botIds":
			bundle[k] = strings.Split(v, ",")
		default:
			bundle[k] = v
		}
	}
	attrs, err := kmsdk.DecodeAttributes(bundle)
	if err != nil {
		return kmsdk.ConversationAttributes{}, apperrors.New(err.Error()).SetExitCode(apperrors.ExitValidation)
	}
	if appID != "" {
		attrs.AppID = appID
	}
	return attrs, nil
}

func newConversationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversation",
		Short: "Create and open conversations",
		Long: `Create and open conversations.

Available Commands:
  create   Create a conversation and print its channel key
  open     Open the latest conversation, or the one named by a channel key`,
	}
	cmd.AddCommand(newConversationCreateCmd())
	cmd.AddCommand(newConversationOpenCmd())
	return cmd
}

func newConversationCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [flags]",
		Short: "Create a conversation",
		Long: `Create a conversation and print the channel key the backend assigned.

Examples:
  kmchat conversation create
  kmchat conversation create --attr groupName=support --attr agentIds=a1,a2
  kmchat conversation create --app-id 2c3b81318c62`,
		RunE: runtimeRunE(func(cmd *cobra.Command, rt *runtime, args []string) error {
			pairs, _ := cmd.Flags().GetStringArray("attr")
			appID, _ := cmd.Flags().GetString("app-id")
			useConfigApp, _ := cmd.Flags().GetBool("with-app-id")

			var key kmsdk.ChannelKey
			var err error
			if useConfigApp && len(pairs) == 0 && appID == "" {
				key, err = rt.app.PressBuildConversation(cmd.Context())
			} else {
				attrs, aerr := attributesFromFlags(pairs, appID)
				if aerr != nil {
					return aerr
				}
				key, err = rt.app.PressCreateConversation(cmd.Context(), attrs)
			}
			if err != nil {
				return handled(err)
			}
			rt.result("", map[string]any{"channel_key": key})
			return nil
		}),
	}
	cmd.Flags().StringArray("attr", nil, "Conversation attribute as key=value, repeatable")
	cmd.Flags().String("app-id", "", "Application id to attach to the conversation")
	cmd.Flags().Bool("with-app-id", false, "Attach only the configured application id")
	return cmd
}

func newConversationOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [channelKey]",
		Short: "Open a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: runtimeRunE(func(cmd *cobra.Command, rt *runtime, args []string) error {
			if len(args) == 0 {
				if err := rt.app.PressOpenConversations(cmd.Context()); err != nil {
					return handled(err)
				}
				rt.result("", nil)
				return nil
			}
			if strings.TrimSpace(args[0]) == "" {
				rt.result("Nothing to open", nil)
				return nil
			}
			if err := rt.app.ConfirmOpenSpecific(cmd.Context(), args[0]); err != nil {
				return handled(err)
			}
			rt.result("", map[string]any{"channel_key": strings.TrimSpace(args[0])})
			return nil
		}),
	}
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message> [flags]",
		Short: "Send a message into a new conversation and open it",
		Long: `Create a conversation without opening it, send the message into it, then open it.
If opening fails the message is still delivered; the channel key is printed so the
conversation can be opened with "kmchat conversation open".

Examples:
  kmchat send "hi"
  kmchat send "hi" --meta Name="Alex Williams" --meta ID=X123Y24`,
		Args: cobra.ExactArgs(1),
		RunE: runtimeRunE(func(cmd *cobra.Command, rt *runtime, args []string) error {
			pairs, _ := cmd.Flags().GetStringArray("meta")
			meta := defaultMessageMetadata
			if len(pairs) > 0 {
				var err error
				if meta, err = parseKeyValues(pairs); err != nil {
					return err
				}
			}

			out, err := rt.app.PressSendMessage(cmd.Context(), args[0], meta)
			if err != nil {
				return handled(err)
			}
			rt.result("Message sent to "+out.ChannelKey.String(), map[string]any{
				"channel_key": out.ChannelKey,
				"state":       out.State.String(),
				"delivered":   out.Delivered,
			})
			return nil
		}),
	}
	cmd.Flags().StringArray("meta", nil, "Message metadata as key=value, repeatable")
	return cmd
}
