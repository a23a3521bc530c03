package ui

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/webmeet/internal/call"
)

// CallSummary is printed after the call screen closes.
type CallSummary struct {
	MeetingID        string
	Role             string
	Duration         time.Duration
	MessagesSent     int
	MessagesReceived int
	Received         uint64
	Err              error
}

// Outcome describes how the call ended in a few words.
func (s CallSummary) Outcome() string {
	switch {
	case s.Err == nil:
		return "left"
	case errors.Is(s.Err, call.ErrRoomFull):
		return "room full"
	case errors.Is(s.Err, call.ErrSignalingClosed):
		return "server disconnected"
	default:
		return "failed"
	}
}

func (s CallSummary) View() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s Call summary", IconCall))
	t.Style().Title.Colors = text.Colors{text.FgCyan, text.Bold}
	t.Style().Options.SeparateRows = false

	t.AppendRows([]table.Row{
		{"Meeting", s.MeetingID},
		{"Role", s.Role},
		{"Duration", formatDuration(s.Duration)},
		{"Messages sent", s.MessagesSent},
		{"Messages received", s.MessagesReceived},
		{"Media received", formatBytes(s.Received)},
		{"Outcome", s.Outcome()},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: text.Colors{text.Bold}},
		{Number: 2, Align: text.AlignRight},
	})

	return t.Render()
}

func (s CallSummary) Render() {
	fmt.Println(s.View())
}
