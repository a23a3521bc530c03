package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/webmeet/internal/call"
	"github.com/BioHazard786/webmeet/internal/chat"
)

// chatLines is how many chat messages stay on screen.
const chatLines = 8

// Controls are the user actions the call screen triggers.
type Controls interface {
	ToggleMic()
	ToggleCamera()
	SendChat(text string)
	ExitCall()
}

// CallUI is the interactive call screen. It implements call.Observer, so the
// sequencer can push updates into it from its own goroutine.
type CallUI struct {
	program *tea.Program
	model   *callModel
}

type (
	statusMsg  call.Status
	localMsg   []call.LocalTrack
	remoteMsg  struct{ track call.RemoteTrack }
	clearedMsg struct{}
	chatMsg    chat.Message
	errorMsg   struct{ err error }
	endedMsg   struct{ err error }
	tickMsg    time.Time
)

type callModel struct {
	info     MeetingInfo
	controls Controls

	status  call.Status
	local   []call.LocalTrack
	remote  []call.RemoteTrack
	chat    []chat.Message
	lastErr error

	spinner   spinner.Model
	input     textinput.Model
	startTime time.Time
	connected time.Time
	received  uint64
	ended     bool
	endErr    error
}

// NewCallUI creates the call screen for a meeting. Updates sent before Run
// wait until the screen is up.
func NewCallUI(info MeetingInfo) *CallUI {
	model := newCallModel(info, nil)
	return &CallUI{
		model:   model,
		program: tea.NewProgram(model),
	}
}

func newCallModel(info MeetingInfo, controls Controls) *callModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = "Type a message"
	input.Prompt = IconChat + " "
	input.CharLimit = 500
	input.Focus()

	return &callModel{
		info:      info,
		controls:  controls,
		spinner:   s,
		input:     input,
		startTime: time.Now(),
	}
}

// Run shows the screen until the call ends and returns its summary.
// controls receives the user's key presses.
func (ui *CallUI) Run(controls Controls) (CallSummary, error) {
	ui.model.controls = controls
	final, err := ui.program.Run()
	if err != nil {
		return CallSummary{}, fmt.Errorf("call screen: %w", err)
	}
	m, ok := final.(*callModel)
	if !ok {
		m = ui.model
	}
	return m.summary(), nil
}

// Finish closes the screen once the sequencer has stopped.
func (ui *CallUI) Finish(err error) {
	ui.program.Send(endedMsg{err: err})
}

func (ui *CallUI) StatusChanged(status call.Status) {
	ui.program.Send(statusMsg(status))
}

func (ui *CallUI) LocalStream(stream *call.LocalStream) {
	var tracks []call.LocalTrack
	if stream != nil {
		tracks = stream.Tracks()
	}
	ui.program.Send(localMsg(tracks))
}

func (ui *CallUI) RemoteTrack(track call.RemoteTrack) {
	ui.program.Send(remoteMsg{track: track})
}

func (ui *CallUI) RemoteCleared() {
	ui.program.Send(clearedMsg{})
}

func (ui *CallUI) Chat(msg chat.Message) {
	ui.program.Send(chatMsg(msg))
}

func (ui *CallUI) Error(err error) {
	ui.program.Send(errorMsg{err: err})
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *callModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, tick())
}

func (m *callModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case statusMsg:
		m.status = call.Status(msg)
		if m.status.State == call.Connected && m.connected.IsZero() {
			m.connected = time.Now()
		}
		if m.status.State == call.Ended {
			m.ended = true
		}
		return m, nil

	case localMsg:
		m.local = msg
		return m, nil

	case remoteMsg:
		m.remote = append(m.remote, msg.track)
		return m, nil

	case clearedMsg:
		m.received += m.remoteBytes()
		m.remote = nil
		m.connected = time.Time{}
		return m, nil

	case chatMsg:
		m.chat = append(m.chat, chat.Message(msg))
		return m, nil

	case errorMsg:
		m.lastErr = msg.err
		return m, nil

	case endedMsg:
		m.ended = true
		m.endErr = msg.err
		return m, tea.Quit

	case tickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey maps key presses to controls. Controls run inside commands so a
// full sequencer queue never stalls the screen.
func (m *callModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+x":
		return m, func() tea.Msg {
			m.controls.ExitCall()
			return nil
		}
	case "ctrl+t":
		return m, func() tea.Msg {
			m.controls.ToggleMic()
			return nil
		}
	case "ctrl+r":
		return m, func() tea.Msg {
			m.controls.ToggleCamera()
			return nil
		}
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			m.controls.SendChat(text)
			return nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *callModel) remoteBytes() uint64 {
	var total uint64
	for _, t := range m.remote {
		total += t.BytesReceived()
	}
	return total
}

func (m *callModel) hasLocal(kind webrtc.RTPCodecType) bool {
	for _, t := range m.local {
		if t.Kind() == kind {
			return true
		}
	}
	return false
}

func (m *callModel) View() string {
	if m.ended {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.statusView())
	b.WriteString("\n\n")
	b.WriteString(m.localView())
	b.WriteString("\n\n")
	b.WriteString(m.remoteView())
	b.WriteString("\n\n")

	if m.lastErr != nil {
		b.WriteString(ErrorStyle.Render(IconError + " " + m.lastErr.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(m.chatView())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(FooterStyle.Render("enter send • ctrl+t mic • ctrl+r camera • ctrl+x leave"))
	b.WriteString("\n")

	return b.String()
}

func (m *callModel) statusView() string {
	line := fmt.Sprintf("%s %s", IconRoom, TitleStyle.Render(m.info.MeetingID))
	badge := StatusStyle.Render(m.status.State.String())

	switch m.status.State {
	case call.Connected:
		elapsed := time.Since(m.connected)
		return fmt.Sprintf("%s  %s %s  %s",
			line, badge, MutedStyle.Render(m.status.Role.String()),
			MutedStyle.Render(formatDuration(elapsed)))
	case call.AwaitingPeerReady:
		return fmt.Sprintf("%s  %s %s %s\n%s %s",
			line, badge, m.spinner.View(), MutedStyle.Render("share the link to invite someone"),
			IconLink, MutedStyle.Render(m.info.Link))
	default:
		return fmt.Sprintf("%s  %s %s", line, badge, m.spinner.View())
	}
}

func (m *callModel) localView() string {
	mic := MutedStyle.Render("no microphone")
	if m.hasLocal(webrtc.RTPCodecTypeAudio) {
		if m.status.Mic {
			mic = IconMic + " mic on"
		} else {
			mic = WarningStyle.Render(IconMuted + " muted")
		}
	}

	cam := MutedStyle.Render("no camera")
	if m.hasLocal(webrtc.RTPCodecTypeVideo) {
		if m.status.Camera {
			cam = IconCamera + " camera on"
		} else {
			cam = WarningStyle.Render(IconNoVideo + " camera off")
		}
	}

	return fmt.Sprintf("%s You   %s   %s", BoldStyle.Render("▸"), mic, cam)
}

func (m *callModel) remoteView() string {
	if len(m.remote) == 0 {
		return MutedStyle.Render(IconPeer + " No remote media yet")
	}

	rows := make([][]string, 0, len(m.remote))
	for _, t := range m.remote {
		rows = append(rows, []string{
			t.Kind().String(),
			truncateString(t.Codec(), 16),
			formatBytes(t.BytesReceived()),
		})
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Peer track", "Codec", "Received").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.String()
}

func (m *callModel) chatView() string {
	if len(m.chat) == 0 {
		return MutedStyle.Render("No messages")
	}

	start := max(0, len(m.chat)-chatLines)
	var b strings.Builder
	for _, msg := range m.chat[start:] {
		name := PeerStyle.Render("peer")
		if msg.Sender == chat.User {
			name = SelfStyle.Render("you")
		}
		fmt.Fprintf(&b, "%s %s %s\n", MutedStyle.Render(msg.At.Format("15:04")), name, msg.Text)
	}
	return b.String()
}

func (m *callModel) summary() CallSummary {
	summary := CallSummary{
		MeetingID: m.info.MeetingID,
		Role:      m.status.Role.String(),
		Duration:  time.Since(m.startTime),
		Received:  m.received + m.remoteBytes(),
		Err:       m.endErr,
	}
	for _, msg := range m.chat {
		if msg.Sender == chat.User {
			summary.MessagesSent++
		} else {
			summary.MessagesReceived++
		}
	}
	if errors.Is(m.endErr, call.ErrRoomFull) {
		summary.Role = "-"
	}
	return summary
}
