package responder

import "fmt"

type IncompleteSettingsError struct {
	MissingReply   bool
	MissingTrigger bool
}

func (e *IncompleteSettingsError) Error() string {
	switch {
	case e.MissingReply && e.MissingTrigger:
		return "reply message and trigger are not set"
	case e.MissingReply:
		return "reply message is not set"
	default:
		return "trigger is not set"
	}
}

type AlreadyRunningError struct{}

func (e *AlreadyRunningError) Error() string {
	return "responder is already running"
}

type MalformedPayloadError struct {
	From   uint32
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed text payload from !%08x: %s", e.From, e.Reason)
}
