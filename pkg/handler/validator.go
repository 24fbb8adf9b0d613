package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// DefaultSignatureTolerance is the replay window for Slack request timestamps
const DefaultSignatureTolerance = 300 * time.Second

// Slack signature headers
const (
	HeaderSlackSignature = "X-Slack-Signature"
	HeaderSlackTimestamp = "X-Slack-Request-Timestamp"
)

// VerifySlackSignature validates a Slack request signature.
// See: https://api.slack.com/authentication/verifying-requests-from-slack
//
// It returns false for an unparsable timestamp, a timestamp more than
// tolerance away from now in either direction, or a signature mismatch.
func VerifySlackSignature(signingSecret, timestamp, signature string, body []byte, tolerance time.Duration, now time.Time) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}

	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(tolerance/time.Second) {
		return false
	}

	return hmac.Equal([]byte(expectedSignature(signingSecret, timestamp, body)), []byte(signature))
}

// expectedSignature computes "v0=" + hex(HMAC-SHA256(secret, "v0:<ts>:<body>"))
func expectedSignature(signingSecret, timestamp string, body []byte) string {
	h := hmac.New(sha256.New, []byte(signingSecret))
	h.Write([]byte("v0:" + timestamp + ":"))
	h.Write(body)
	return "v0=" + hex.EncodeToString(h.Sum(nil))
}
