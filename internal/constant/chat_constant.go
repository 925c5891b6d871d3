package constant

const (
	// Experiment groups. Persisted on the user row; assignment is permanent.
	GroupA = "GROUP_A" // control: classic chat list
	GroupB = "GROUP_B" // treatment: visual-novel presentation

	// Mood a message carries until (and unless) classification succeeds.
	MoodNeutral = "neutral"

	// Classification job states.
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusDone       = "DONE"
	JobStatusFailed     = "FAILED"

	// Attempts at or above this threshold force a terminal FAILED.
	JobMaxAttempts = 3
)

// Websocket frame types.
const (
	FrameJoin    = "join"
	FrameMessage = "message"

	FrameAck                   = "ack"
	FramePresenceChanged       = "presence_changed"
	FrameMessageCreated        = "message_created"
	FrameClassificationUpdated = "classification_updated"
	FrameRejected              = "rejected"
	FrameServerError           = "server_error"
)

// Rejection kinds carried on a "rejected" frame.
const (
	RejectInvalidPayload = "INVALID_PAYLOAD"
	RejectRateLimited    = "RATE_LIMITED"
)
