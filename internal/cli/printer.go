package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/kmchat/kmchat/internal/app"
	"github.com/kmchat/kmchat/internal/common/eventbus"
	"github.com/kmchat/kmchat/internal/kmsdk/httpsdk"
	"github.com/kmchat/kmchat/internal/orchestrator"
)

var conversationLabel = color.New(color.FgHiMagenta, color.Bold)
var screenLabel = color.New(color.FgHiWhite, color.Faint)
var metaLabel = color.New(color.FgHiWhite, color.Faint)

// Distinct colors for message senders
var colorPalette = []*color.Color{
	color.New(color.FgGreen),
	color.New(color.FgCyan),
	color.New(color.FgMagenta),
	color.New(color.FgYellow),
	color.New(color.FgBlue),
}

// printer renders bus events, opened conversations and command results. In JSON mode
// it prints nothing until result, which emits a single document.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	asJSON bool

	senderColors map[string]*color.Color
	notices      []orchestrator.Notice
	opened       []httpsdk.Conversation
}

var _ httpsdk.Viewer = (*printer)(nil)

func newPrinter(out io.Writer, asJSON bool) *printer {
	return &printer{out: out, asJSON: asJSON, senderColors: map[string]*color.Color{}}
}

func (p *printer) event(e eventbus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch data := e.Data.(type) {
	case orchestrator.Notice:
		if p.asJSON {
			p.notices = append(p.notices, data)
			return
		}
		p.printNotice(data)
	case app.Screen:
		if !p.asJSON {
			screenLabel.Fprintf(p.out, "→ %s\n", data)
		}
	}
}

func (p *printer) printNotice(n orchestrator.Notice) {
	text := n.Message
	if n.Title != "" {
		text = n.Title + ": " + n.Message
	}
	if n.Level == orchestrator.LevelError {
		errorLabel.Fprintf(p.out, "✗ %s\n", text)
		return
	}
	okLabel.Fprintf(p.out, "✓ %s\n", text)
}

// Show implements httpsdk.Viewer.
func (p *printer) Show(conv httpsdk.Conversation, skipBackPress bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.asJSON {
		p.opened = append(p.opened, conv)
		return nil
	}

	title := conv.ChannelKey
	if conv.GroupName != "" {
		title += " (" + conv.GroupName + ")"
	}
	conversationLabel.Fprintf(p.out, "\nConversation %s\n", title)
	if len(conv.Messages) == 0 {
		fmt.Fprintln(p.out, "  no messages yet")
	}
	for _, m := range conv.Messages {
		p.printMessage(m)
	}
	fmt.Fprintln(p.out)
	return nil
}

func (p *printer) printMessage(m httpsdk.ViewMessage) {
	from := m.From
	if from == "" {
		from = "unknown"
	}
	c := p.senderColors[from]
	if c == nil {
		c = colorPalette[len(p.senderColors)%len(colorPalette)]
		p.senderColors[from] = c
	}

	fmt.Fprint(p.out, "  ")
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(p.out, "[%s] ", m.CreatedAt.Local().Format(time.DateTime))
	}
	c.Fprintf(p.out, "%s", from)
	fmt.Fprintf(p.out, " ▶ %s\n", indentMultiline(m.Body, "      "))
	if len(m.Metadata) > 0 {
		metaLabel.Fprintf(p.out, "      %s\n", formatMetadata(m.Metadata))
	}
}

// result prints the final outcome of a command.
func (p *printer) result(text string, fields map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.asJSON {
		if text != "" {
			okLabel.Fprintf(p.out, "✓ %s\n", text)
		}
		return
	}

	doc := map[string]any{"status": "success"}
	for k, v := range fields {
		doc[k] = v
	}
	if len(p.notices) > 0 {
		doc["notices"] = p.notices
	}
	if len(p.opened) > 0 {
		doc["conversations"] = p.opened
	}
	printJSON(p.out, doc)
}

func formatMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+meta[k])
	}
	return strings.Join(parts, " ")
}

// indentMultiline adds indentation to all lines except the first
func indentMultiline(text, indent string) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= 1 {
		return text
	}
	for i := 1; i < len(lines); i++ {
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}
