package broadcast

// Frame types exchanged over a live connection.
const (
	FrameJoinSession   = "joinSession"
	FrameJoinedSession = "joinedSession"
	FrameLeaveSession  = "leaveSession"
	FrameSessionEvent  = "sessionEvent"
	FrameError         = "error"
)

// Event is a narrative message pushed by a Master. It is never persisted.
type Event struct {
	Message string `json:"message"`
}

// Frame is the JSON envelope for every live-connection message.
type Frame struct {
	Type      string `json:"type"`
	SessionID int64  `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
}

func joinedFrame(sessionID int64) Frame {
	return Frame{Type: FrameJoinedSession, SessionID: sessionID}
}

func eventFrame(sessionID int64, event Event) Frame {
	return Frame{Type: FrameSessionEvent, SessionID: sessionID, Message: event.Message}
}

func ErrorFrame(message string) Frame {
	return Frame{Type: FrameError, Message: message}
}
