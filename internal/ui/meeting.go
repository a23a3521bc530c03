package ui

import (
	"fmt"
)

// MeetingInfo is the box shown before the call starts.
type MeetingInfo struct {
	MeetingID string
	Link      string
	Created   bool
}

func (m MeetingInfo) View() string {
	heading := fmt.Sprintf("%s Joining meeting", IconCall)
	if m.Created {
		heading = fmt.Sprintf("%s New meeting", IconSuccess)
	}

	content := fmt.Sprintf("%s\n\n%s Meeting ID:  %s\n%s Link:        %s",
		heading,
		IconRoom, BoldStyle.Foreground(Primary).Render(m.MeetingID),
		IconLink, MutedStyle.Render(m.Link),
	)
	return SuccessBoxStyle.Render(content)
}

func (m MeetingInfo) Render() {
	fmt.Println(m.View())
}
