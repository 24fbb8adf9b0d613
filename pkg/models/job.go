package models

// GenerationJob is the payload of an async generation request. It travels
// from the router to the trigger endpoint and on to the worker unchanged,
// except that the worker does not need Stage.
type GenerationJob struct {
	ContextID    string            `json:"context_id"`
	ExternalID   string            `json:"external_id"`
	Stage        string            `json:"stage,omitempty"`
	RedactedBody string            `json:"redacted_body,omitempty"`
	PIIMap       map[string]string `json:"pii_map,omitempty"`
}

// InboundMail is one parsed inbound email ready for ingestion
type InboundMail struct {
	MessageID string
	From      string
	Subject   string
	Body      string
	Source    string
}

// StepFunctionInput is the input payload sent to Step Functions when starting a generation job
type StepFunctionInput struct {
	ContextID  string `json:"contextId"`
	ExternalID string `json:"externalId"`
	Stage      string `json:"stage"`
	JobPayload string `json:"jobPayload"`
}
