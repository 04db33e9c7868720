package platform

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
)

// wireEvent is the on-the-wire shape of one socket-mode-style event
// frame. The real chat platform's event protocol is out of scope (spec
// §1); this is the minimal envelope the core's EventSource decodes.
type wireEvent struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	User      string `json:"user"`
	Text      string `json:"text"`
	ThreadTS  string `json:"thread_ts"`
	TS        string `json:"ts"`
	Command   string `json:"command"`
}

// EventSource streams inbound events over a websocket connection,
// matching the socket-mode-shaped transport described in spec §5/§6 for
// "inbound events delivered via the platform client's event channel".
type EventSource struct {
	url string
	log zerolog.Logger
}

// NewEventSource builds an EventSource dialing url on Run.
func NewEventSource(url string, log zerolog.Logger) *EventSource {
	return &EventSource{url: url, log: log}
}

// Run dials the event-channel websocket and pushes decoded events onto
// out until ctx is cancelled or the connection is lost. Callers should
// wrap Run in a reconnect loop; Run itself does not retry.
func (s *EventSource) Run(ctx context.Context, out chan<- Event) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return errs.Wrap(errs.UpstreamTransient, "dial event channel", err)
	}
	defer conn.CloseNow()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "shutting down")
				return nil
			}
			return errs.Wrap(errs.UpstreamTransient, "read event frame", err)
		}
		var we wireEvent
		if err := json.Unmarshal(data, &we); err != nil {
			s.log.Warn().Err(err).Msg("dropping malformed event frame")
			continue
		}
		evt := Event{
			Type:       EventType(we.Type),
			ChannelID:  we.Channel,
			UserID:     we.User,
			Text:       we.Text,
			ThreadTS:   we.ThreadTS,
			TS:         we.TS,
			Command:    we.Command,
			ReceivedAt: time.Now(),
		}
		select {
		case out <- evt:
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "shutting down")
			return nil
		}
	}
}
