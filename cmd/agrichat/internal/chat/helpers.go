package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/agrigrow/agrichat/cmd/agrichat/internal"
	"github.com/agrigrow/agrichat/pkg/api"
	"github.com/agrigrow/agrichat/pkg/auth"
	"github.com/agrigrow/agrichat/pkg/bus"
	"github.com/agrigrow/agrichat/pkg/chat"
	"github.com/agrigrow/agrichat/pkg/config"
	"github.com/agrigrow/agrichat/pkg/logger"
	"github.com/agrigrow/agrichat/pkg/session"
	"github.com/agrigrow/agrichat/pkg/transport"
)

func participantsCmd() error {
	_, client, _, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	participants, err := client.Participants(ctx)
	if err != nil {
		return fmt.Errorf("fetching participants: %w", err)
	}

	if len(participants) == 0 {
		fmt.Println("No chat participants yet")
		return nil
	}

	for _, p := range participants {
		label := p.DisplayName()
		if p.IsAdmin {
			label += " (admin)"
		}
		fmt.Printf("%-30s %s\n", label, p.ID)
	}
	return nil
}

func chatCmd(participantArg string, debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, client, cred, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	participant, err := resolveParticipant(ctx, client, participantArg)
	if err != nil {
		return err
	}

	endpoint, err := cfg.SocketEndpoint()
	if err != nil {
		return err
	}

	events := bus.NewEventBus()
	defer events.Close()

	factory := func() session.Transport {
		return transport.NewAdapter(endpoint,
			transport.WithReconnect(cfg.Chat.ReconnectAttempts, cfg.ReconnectDelay()))
	}

	ctrl := session.New(cred.User.ID, client, factory, events,
		session.WithEchoMatchWindow(cfg.EchoMatchWindow()))

	if err := ctrl.Open(ctx, participant.ID); err != nil {
		return err
	}
	defer ctrl.Close()

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	printHistory(rl.Stdout(), ctrl.Messages(), cred.User.ID, participant)

	go renderStoreEvents(ctx, events, rl.Stdout(), cred.User.ID, participant)
	go renderConnectionEvents(ctx, events, rl.Stdout())

	fmt.Fprintf(rl.Stdout(), "%s Chatting with %s — type a message, /quit to leave\n",
		internal.Logo, participant.DisplayName())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if strings.TrimSpace(line) == "/quit" {
			return nil
		}

		if err := ctrl.Send(ctx, line); err != nil {
			if errors.Is(err, session.ErrEmptyMessage) {
				continue
			}
			fmt.Fprintf(rl.Stdout(), "! send failed: %v\n", err)
		}
	}
}

func setup() (*config.Config, *api.Client, *auth.Credential, error) {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error loading config: %w", err)
	}

	cred, err := auth.NewStore(cfg.StateDir()).Load()
	if errors.Is(err, auth.ErrNotLoggedIn) {
		return nil, nil, nil, errors.New("not logged in; run: agrichat login")
	}
	if err != nil {
		return nil, nil, nil, err
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.APITimeout())
	client.SetToken(cred.Token)
	return cfg, client, cred, nil
}

// resolveParticipant matches arg against id, email or display name.
func resolveParticipant(ctx context.Context, client *api.Client, arg string) (api.Participant, error) {
	participants, err := client.Participants(ctx)
	if err != nil {
		return api.Participant{}, fmt.Errorf("fetching participants: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(arg))
	for _, p := range participants {
		if p.ID == arg ||
			strings.ToLower(p.Email) == needle ||
			strings.ToLower(p.Name) == needle {
			return p, nil
		}
	}
	return api.Participant{}, fmt.Errorf("no participant matches %q; try: agrichat participants", arg)
}

func printHistory(w io.Writer, messages []chat.Message, localUserID string, participant api.Participant) {
	for _, m := range messages {
		printMessage(w, m.SenderID, m.Body, m.Timestamp, localUserID, participant)
	}
}

func renderStoreEvents(ctx context.Context, events *bus.EventBus, w io.Writer, localUserID string, participant api.Participant) {
	for {
		ev, ok := events.ConsumeStore(ctx)
		if !ok {
			return
		}
		// Locally sent messages are already on screen as the typed line;
		// only remote arrivals need rendering.
		if ev.Kind == bus.StoreAppended && ev.SenderID != localUserID {
			printMessage(w, ev.SenderID, ev.Body, ev.Timestamp, localUserID, participant)
		}
	}
}

func renderConnectionEvents(ctx context.Context, events *bus.EventBus, w io.Writer) {
	for {
		ev, ok := events.ConsumeConnection(ctx)
		if !ok {
			return
		}
		switch transport.State(ev.State) {
		case transport.StateReconnecting:
			fmt.Fprintln(w, "* connection lost, reconnecting...")
		case transport.StateConnected:
			fmt.Fprintln(w, "* connected")
		case transport.StateFailed:
			fmt.Fprintln(w, "* live updates unavailable; messages still send")
		}
	}
}

func printMessage(w io.Writer, senderID, body string, ts time.Time, localUserID string, participant api.Participant) {
	name := participant.DisplayName()
	if senderID == localUserID {
		name = "me"
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", ts.Local().Format("15:04"), name, body)
}
