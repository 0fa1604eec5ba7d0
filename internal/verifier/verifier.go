package verifier

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loopwire/webhook-service/internal/infrastructure/crypto"
)

// Result classifies the outcome of signature verification
type Result string

const (
	ResultValid            Result = "valid"
	ResultMissingHeader    Result = "missing_header"
	ResultMalformedHeader  Result = "malformed_header"
	ResultTimestampExpired Result = "timestamp_expired"
	ResultInvalidSignature Result = "invalid_signature"
)

// DefaultTolerance bounds how far a signed timestamp may drift from the
// server clock before the delivery is rejected as a captured replay.
const DefaultTolerance = 5 * time.Minute

// SignatureVerifier validates the provider's signed-envelope header:
// a comma-delimited list of key=value pairs carrying a unix timestamp `t`
// and one or more candidate signatures `v1`, where each v1 is
// HMAC-SHA256("{t}.{raw_body}") under the shared secret.
type SignatureVerifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// New creates a verifier for one provider's secret and tolerance window.
// A non-positive tolerance falls back to DefaultTolerance.
func New(secret string, tolerance time.Duration) *SignatureVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &SignatureVerifier{
		secret:    secret,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// WithClock overrides the verifier's clock. Used by tests.
func (v *SignatureVerifier) WithClock(now func() time.Time) *SignatureVerifier {
	v.now = now
	return v
}

// signedHeader is the parsed form of the signature header.
type signedHeader struct {
	timestamp  int64
	signatures []string
}

// parseHeader splits "t=1679000000,v1=abc,v1=def" into its parts. Unknown
// keys are ignored so providers can roll new scheme versions without
// breaking older consumers.
func parseHeader(header string) (*signedHeader, error) {
	parsed := &signedHeader{timestamp: -1}

	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed signature pair: %q", pair)
		}

		switch parts[0] {
		case "t":
			ts, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed timestamp: %w", err)
			}
			parsed.timestamp = ts
		case "v1":
			if parts[1] == "" {
				return nil, fmt.Errorf("empty signature value")
			}
			parsed.signatures = append(parsed.signatures, parts[1])
		}
	}

	if parsed.timestamp < 0 {
		return nil, fmt.Errorf("signature header missing timestamp")
	}
	if len(parsed.signatures) == 0 {
		return nil, fmt.Errorf("signature header missing v1 signature")
	}

	return parsed, nil
}

// Verify checks the signature header against the raw request body. It has
// no side effects and must be called before any persistence; a non-valid
// result means the delivery never reaches the store. The raw body, the
// secret, and the signature values are never logged by callers - only the
// returned category.
func (v *SignatureVerifier) Verify(rawBody []byte, header string) Result {
	if strings.TrimSpace(header) == "" {
		return ResultMissingHeader
	}

	parsed, err := parseHeader(header)
	if err != nil {
		return ResultMalformedHeader
	}

	// Freshness first: an expired envelope is rejected even when the
	// signature itself would match, closing the captured-request window.
	age := v.now().Sub(time.Unix(parsed.timestamp, 0))
	if age > v.tolerance || age < -v.tolerance {
		return ResultTimestampExpired
	}

	signedPayload := fmt.Sprintf("%d.%s", parsed.timestamp, rawBody)
	expected := crypto.ComputeSignature(v.secret, []byte(signedPayload))

	for _, candidate := range parsed.signatures {
		if crypto.SecureCompare(expected, candidate) {
			return ResultValid
		}
	}

	return ResultInvalidSignature
}
