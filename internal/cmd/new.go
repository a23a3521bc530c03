package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/webmeet/internal/meetingid"
	"github.com/BioHazard786/webmeet/internal/ui"
)

var (
	newFlags    callFlags
	flagNewJoin bool
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new meeting",
	Long: `Create a new meeting id and print its link. Share the link with the other
participant, then join with --join or "meet join <id>".

Examples:
  meet new
  meet new --join`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		meetingID := meetingid.New()

		if flagNewJoin {
			return joinMeeting(cmd.Context(), meetingID, &newFlags, true)
		}

		cfg, err := loadConfig(newFlags.options())
		if err != nil {
			return err
		}
		ui.MeetingInfo{
			MeetingID: meetingID,
			Link:      cfg.GetMeetingLink(meetingID),
			Created:   true,
		}.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	newFlags.register(newCmd)
	newCmd.Flags().BoolVar(&flagNewJoin, "join", false, "Join the new meeting right away")
}
