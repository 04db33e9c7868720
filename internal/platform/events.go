package platform

import "time"

// EventType enumerates the inbound event shapes from spec §6.
type EventType string

const (
	EventMessageIM          EventType = "message.im"
	EventMessage            EventType = "message"
	EventAppMention         EventType = "app_mention"
	EventMemberJoinedChannel EventType = "member_joined_channel"
	EventViewSubmission     EventType = "view_submission"
	EventSlashCommand       EventType = "slash_command"
)

// Event is the normalized inbound event envelope dispatched to handlers.
type Event struct {
	Type      EventType
	ChannelID string
	UserID    string
	Text      string
	ThreadTS  string // non-empty if this is a threaded reply
	TS        string // this event's own timestamp, used as thread root for new threads
	Command   string // slash-command name, when Type==EventSlashCommand
	ReceivedAt time.Time
}

// IsThreadReply reports whether this event is a reply within a thread.
func (e Event) IsThreadReply() bool {
	return e.ThreadTS != "" && e.ThreadTS != e.TS
}
