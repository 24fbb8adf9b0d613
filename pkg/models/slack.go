package models

// Slack interaction types handled by the router
const (
	EventURLVerification = "url_verification"
	EventBlockActions    = "block_actions"
	EventViewSubmission  = "view_submission"
)

// SlackPayload is the subset of a Slack Events API or interactivity payload
// that the router reads. Unknown fields are ignored.
type SlackPayload struct {
	Type      string        `json:"type"`
	Challenge string        `json:"challenge"`
	TriggerID string        `json:"trigger_id"`
	Actions   []SlackAction `json:"actions"`
	View      SlackView     `json:"view"`
}

// SlackAction is one element of a block_actions payload
type SlackAction struct {
	ActionID string `json:"action_id"`
	BlockID  string `json:"block_id"`
	Value    string `json:"value"`
}

// SlackView is the submitted modal in a view_submission payload
type SlackView struct {
	ID              string         `json:"id"`
	ExternalID      string         `json:"external_id"`
	CallbackID      string         `json:"callback_id"`
	PrivateMetadata string         `json:"private_metadata"`
	State           SlackViewState `json:"state"`
}

// SlackViewState holds input values keyed by block id, then action id
type SlackViewState struct {
	Values map[string]map[string]SlackInputValue `json:"values"`
}

// SlackInputValue is the value of a single input element
type SlackInputValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ContextRef is the JSON carried in button values and modal private metadata
type ContextRef struct {
	ContextID string `json:"context_id"`
}

// InputValue returns the value of blockID/actionID, or "" when absent
func (s SlackViewState) InputValue(blockID, actionID string) string {
	block, ok := s.Values[blockID]
	if !ok {
		return ""
	}
	return block[actionID].Value
}
