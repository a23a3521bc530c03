package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/webmeet/internal/call"
	"github.com/BioHazard786/webmeet/internal/config"
	"github.com/BioHazard786/webmeet/internal/signalclient"
	"github.com/BioHazard786/webmeet/internal/ui"
)

const connectTimeout = 15 * time.Second

// callFlags are shared by every command that ends up in a call.
type callFlags struct {
	domain      string
	insecure    bool
	stun        string
	turn        string
	turnUser    string
	turnPass    string
	relay       bool
	codec       string
	receiveOnly bool
}

func (f *callFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.domain, "domain", "d", "", "Signaling server host (default localhost:8080)")
	cmd.Flags().BoolVar(&f.insecure, "insecure", false, "Use ws:// and http:// instead of TLS")
	cmd.Flags().StringVarP(&f.stun, "stun", "s", "", "STUN server URL")
	cmd.Flags().StringVarP(&f.turn, "turn", "t", "", "TURN server host")
	cmd.Flags().StringVarP(&f.turnUser, "turn-user", "u", "", "TURN username")
	cmd.Flags().StringVarP(&f.turnPass, "turn-pass", "p", "", "TURN password")
	cmd.Flags().BoolVarP(&f.relay, "relay", "r", false, "Force traffic through the TURN relay")
	cmd.Flags().StringVar(&f.codec, "codec", "", "Signaling codec: json or msgpack")
	cmd.Flags().BoolVar(&f.receiveOnly, "receive-only", false, "Do not capture camera or microphone")
}

func (f *callFlags) options() config.Options {
	return config.Options{
		Domain:     f.domain,
		Insecure:   f.insecure,
		Codec:      f.codec,
		STUNServer: f.stun,
		TURNServer: f.turn,
		TURNUser:   f.turnUser,
		TURNPass:   f.turnPass,
		ForceRelay: f.relay,
	}
}

var joinFlags callFlags

var joinCmd = &cobra.Command{
	Use:     "join <meeting-id|link>",
	Aliases: []string{"j"},
	Short:   "Join a meeting",
	Long: `Join a meeting and start a call with the other participant.

The first participant in a meeting waits for the second one; the meeting
holds two people at most.

Examples:
  meet join calm-otter-river-42
  meet join https://meet.example.com/meet/calm-otter-river-42
  meet join calm-otter-river-42 --receive-only --codec msgpack`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meetingID, err := parseMeetingInput(args[0])
		if err != nil {
			return err
		}
		return joinMeeting(cmd.Context(), meetingID, &joinFlags, false)
	},
}

func loadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, call.NewError("load config", err)
	}
	return cfg, nil
}

func joinMeeting(ctx context.Context, meetingID string, flags *callFlags, created bool) error {
	cfg, err := loadConfig(flags.options())
	if err != nil {
		return err
	}
	log := slog.Default().With("meeting", meetingID)

	info := ui.MeetingInfo{
		MeetingID: meetingID,
		Link:      cfg.GetMeetingLink(meetingID),
		Created:   created,
	}
	fmt.Println()
	info.Render()
	fmt.Println()

	client, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer client.Close()

	media, codecs, err := mediaSource(flags.receiveOnly, log)
	if err != nil {
		return err
	}

	peers, err := call.NewPionFactory(cfg, codecs, log)
	if err != nil {
		return err
	}

	screen := ui.NewCallUI(info)
	seq := call.NewSequencer(call.Config{
		RoomID:      meetingID,
		Signaler:    client,
		Peers:       peers,
		Media:       media,
		Constraints: call.DefaultConstraints(),
		Observer:    screen,
		Log:         log,
	})

	callErr := make(chan error, 1)
	go func() {
		err := seq.Run(ctx, client.Incoming())
		screen.Finish(err)
		callErr <- err
	}()
	seq.Join()

	summary, uiErr := screen.Run(seq)
	if uiErr != nil {
		seq.ExitCall()
	}
	err = <-callErr
	summary.Err = err

	if uiErr != nil {
		return uiErr
	}

	summary.Render()

	switch {
	case errors.Is(err, call.ErrRoomFull):
		return fmt.Errorf("meeting %s already has two participants", meetingID)
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

func connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (*signalclient.Client, error) {
	s := ui.NewConnectionSpinner("Connecting to server...")
	s.Start()

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client := signalclient.NewClient(cfg.WebSocketURL, cfg.Codec, log)
	if err := client.Connect(ctx); err != nil {
		s.Error("Could not reach the signaling server")
		return nil, call.NewError("connect to server", err)
	}
	s.Success(fmt.Sprintf("Connected to %s (%s)", cfg.Domain, client.Codec().Name()))
	return client, nil
}

// mediaSource picks camera and microphone capture when it is available and
// wanted. The returned registrar is nil when pion's default codecs apply.
func mediaSource(receiveOnly bool, log *slog.Logger) (call.MediaSource, call.CodecRegistrar, error) {
	if receiveOnly {
		return call.ReceiveOnly{}, nil, nil
	}
	if !call.CaptureSupported {
		ui.PrintWarning("Camera and microphone capture is not supported on this platform; joining receive-only")
		return call.ReceiveOnly{}, nil, nil
	}

	source, err := call.NewDeviceSource(log)
	if err != nil {
		return nil, nil, call.NewError("set up capture", err)
	}
	return source, source, nil
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinFlags.register(joinCmd)
}
