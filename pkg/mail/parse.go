// Package mail extracts sender, subject and a best-effort plain-text body
// from raw RFC 5322 messages.
package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
)

// maxPartDepth bounds recursion into nested multipart bodies
const maxPartDepth = 10

// Message is the part of an inbound email the ingestion path needs
type Message struct {
	MessageID string
	From      string
	Subject   string
	Body      string
}

var wordDecoder = &mime.WordDecoder{}

// Parse reads a raw message. Only an unreadable header block is an error;
// body problems degrade to an empty or partial body.
func Parse(raw []byte) (Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return Message{}, fmt.Errorf("read message: %w", err)
	}

	body, _ := readBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, 0)

	return Message{
		MessageID: strings.Trim(strings.TrimSpace(msg.Header.Get("Message-Id")), "<>"),
		From:      DecodeHeader(msg.Header.Get("From")),
		Subject:   DecodeHeader(msg.Header.Get("Subject")),
		Body:      body,
	}, nil
}

// DecodeHeader decodes RFC 2047 encoded words, returning value unchanged when
// it cannot be decoded.
func DecodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// readBody returns the best text rendition of an entity, preferring
// text/plain over text/html at every multipart level.
func readBody(contentType, transferEncoding string, r io.Reader, depth int) (string, bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || contentType == "" {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxPartDepth || params["boundary"] == "" {
			return "", false
		}
		return readMultipart(multipart.NewReader(r, params["boundary"]), depth+1)
	}

	switch mediaType {
	case "text/plain":
		data, err := io.ReadAll(Decode(transferEncoding, r))
		if err != nil && len(data) == 0 {
			return "", false
		}
		return string(data), true
	case "text/html":
		data, err := io.ReadAll(Decode(transferEncoding, r))
		if err != nil && len(data) == 0 {
			return "", false
		}
		return HTMLToText(string(data)), false
	default:
		return "", false
	}
}

// readMultipart picks the first text/plain rendition, falling back to the
// first html one. The boolean reports whether the result is plain text.
func readMultipart(mr *multipart.Reader, depth int) (string, bool) {
	var fallback string
	for {
		part, err := mr.NextRawPart()
		if err != nil {
			break
		}
		if isAttachment(part) {
			continue
		}
		text, plain := readBody(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part, depth)
		if plain {
			return text, true
		}
		if fallback == "" {
			fallback = text
		}
	}
	return fallback, false
}

func isAttachment(part *multipart.Part) bool {
	disposition, _, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	return err == nil && disposition == "attachment"
}

// Decode wraps r according to a Content-Transfer-Encoding value
func Decode(transferEncoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

var (
	blockTags = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/tr|/h[1-6])\s*/?>`)
	dropTags  = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	anyTag    = regexp.MustCompile(`(?s)<[^>]*>`)
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText reduces an HTML body to readable text
func HTMLToText(s string) string {
	s = dropTags.ReplaceAllString(s, "")
	s = blockTags.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(html.UnescapeString(s), "\u00a0", " ")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
