package models

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ContextRecord is the persisted state of one inbound inquiry.
//
// PIIMap holds the placeholder to original mapping as a JSON string rather
// than a native map; other readers of the same table depend on that layout.
type ContextRecord struct {
	ContextID    string    `dynamodbav:"context_id"`
	SenderEmail  string    `dynamodbav:"sender_email"`
	Subject      string    `dynamodbav:"subject"`
	BodyRaw      string    `dynamodbav:"body_raw"`
	BodyRedacted string    `dynamodbav:"body_redacted"`
	PIIMap       string    `dynamodbav:"pii_map"`
	Source       string    `dynamodbav:"source,omitempty"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
	TTL          int64     `dynamodbav:"ttl,omitempty"` // Unix timestamp, unset unless retention is configured
}

// Record sources
const (
	SourceSES    = "ses"
	SourceGmail  = "gmail"
	SourceInline = "inline"
)

// ExternalIDPrefix prefixes the modal handle derived from a context id
const ExternalIDPrefix = "ai-reply-"

// NewContextRecord builds a record for a freshly redacted inquiry. An empty
// contextID gets a generated one.
func NewContextRecord(contextID, sender, subject, bodyRaw, bodyRedacted string, piiMap map[string]string) *ContextRecord {
	if contextID == "" {
		contextID = generateContextID()
	}
	return &ContextRecord{
		ContextID:    contextID,
		SenderEmail:  sender,
		Subject:      subject,
		BodyRaw:      bodyRaw,
		BodyRedacted: bodyRedacted,
		PIIMap:       EncodePIIMap(piiMap),
		CreatedAt:    time.Now().UTC(),
	}
}

// SetTTL stamps an expiry on the record. A zero or negative ttl leaves it unset.
func (r *ContextRecord) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		r.TTL = 0
		return
	}
	r.TTL = r.CreatedAt.Add(ttl).Unix()
}

// Mapping decodes the stored PII map
func (r *ContextRecord) Mapping() (map[string]string, error) {
	return DecodePIIMap(r.PIIMap)
}

// ExternalID returns the modal handle used for later views.update calls.
// Slack requires handles to be unique per workspace, so a missing context id
// yields no handle.
func ExternalID(contextID string) string {
	if contextID == "" {
		return ""
	}
	return ExternalIDPrefix + contextID
}

// EncodePIIMap serializes a PII map. Nil and empty maps encode as "{}".
func EncodePIIMap(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		// map[string]string always encodes
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// DecodePIIMap parses a stored PII map. An empty string is an empty map;
// anything else that is not a JSON object of strings is an error.
func DecodePIIMap(raw string) (map[string]string, error) {
	m := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]string{}, fmt.Errorf("decode pii map: %w", err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

// generateContextID creates an identifier for mail that arrived without one
func generateContextID() string {
	return "ctx-" + generateULID()
}

// GenerateULID generates a ULID string for unique identifiers
func GenerateULID() string {
	return generateULID()
}

func generateULID() string {
	id, _ := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	return id.String()
}
