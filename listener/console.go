package listener

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/petasbytes/go-conv/conv"
)

var (
	convIDStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// consolePreview is the number of runes printed per message.
const consolePreview = 100

// Console prints one abbreviated line per message.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Before(_ context.Context, convID string, msgs []conv.Message) {
	for _, m := range msgs {
		c.print(convID, m)
	}
}

func (c *Console) After(_ context.Context, convID string, msg conv.Message) {
	c.print(convID, msg)
}

func (c *Console) print(convID string, m conv.Message) {
	text := preview(m)
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s %s\n", convIDStyle.Render(shortID(convID)), roleStyle(m.Role()).Render(string(m.Role())+">"), text)
}

func preview(m conv.Message) string {
	text := strings.Join(strings.Fields(m.Text()), " ")
	if text == "" {
		names := make([]string, 0, len(m.ToolCalls()))
		for _, call := range m.ToolCalls() {
			names = append(names, call.Name)
		}
		if len(names) > 0 {
			return "calls " + strings.Join(names, ", ")
		}
		return ""
	}
	r := []rune(text)
	if len(r) > consolePreview {
		return string(r[:consolePreview]) + "..."
	}
	return text
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func roleStyle(r conv.Role) lipgloss.Style {
	switch r {
	case conv.RoleUser:
		return userStyle
	case conv.RoleAssistant:
		return assistantStyle
	case conv.RoleTool:
		return toolStyle
	default:
		return systemStyle
	}
}
