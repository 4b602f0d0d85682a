// Package realtime implements the WebSocket refresh fan-out. Clients
// send reset events when they mutate threads, replies, or channel
// membership; every other connected client receives the mapped trigger
// event and re-fetches. No payload beyond the channel id is carried,
// no replay, no ordering guarantees.
package realtime

// Event kinds for the typed broadcast path.
type Kind int

const (
	ThreadsChanged Kind = iota
	RepliesChanged
	MembersChanged
)

// Wire names. Inbound frames use the reset* vocabulary, outbound
// frames use the trigger* vocabulary; both are kept for client
// compatibility.
const (
	evResetThreads   = "resetThreads"
	evResetReplies   = "resetReplies"
	evRefreshMembers = "refreshMembers"
	evJoin           = "join"

	evTriggerRefresh        = "triggerRefresh"
	evTriggerRepliesRefresh = "triggerRepliesRefresh"
	evTriggerMembersRefresh = "triggerMembersRefresh"
)

// Frame is the JSON wire format in both directions.
type Frame struct {
	Event     string `json:"event"`
	ChannelID string `json:"channelId,omitempty"`
}

// Event is a typed notification bound for broadcast.
type Event struct {
	Kind      Kind
	ChannelID string
}

func (e Event) frame() Frame {
	return Frame{Event: outboundName(e.Kind), ChannelID: e.ChannelID}
}

func outboundName(k Kind) string {
	switch k {
	case RepliesChanged:
		return evTriggerRepliesRefresh
	case MembersChanged:
		return evTriggerMembersRefresh
	default:
		return evTriggerRefresh
	}
}

// inboundKind maps a reset event name to its typed kind. The second
// return is false for unknown names, which are ignored.
func inboundKind(name string) (Kind, bool) {
	switch name {
	case evResetThreads:
		return ThreadsChanged, true
	case evResetReplies:
		return RepliesChanged, true
	case evRefreshMembers:
		return MembersChanged, true
	}
	return 0, false
}
