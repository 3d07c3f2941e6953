// Package billing verifies billing provider webhook deliveries.
package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix seconds>,v1=<hex hmac>"
const SignatureHeader = "X-Billing-Signature"

const defaultTolerance = 5 * time.Minute

var (
	// ErrMissingSignature means the delivery carried no signature header
	ErrMissingSignature = errors.New("billing: missing signature")
	// ErrMalformedSignature means the header could not be parsed
	ErrMalformedSignature = errors.New("billing: malformed signature header")
	// ErrSignatureExpired means the signed timestamp is outside the tolerance window
	ErrSignatureExpired = errors.New("billing: signature timestamp outside tolerance")
	// ErrSignatureMismatch means no v1 value matched the body
	ErrSignatureMismatch = errors.New("billing: signature mismatch")
)

// SignatureVerifier checks the HMAC-SHA256 signature of a webhook body.
// The signed message is "<t>.<body>".
type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewSignatureVerifier creates a verifier for secret. A non-positive tolerance uses five minutes.
func NewSignatureVerifier(secret string, tolerance time.Duration) (*SignatureVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("billing: webhook secret is required")
	}
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	return &SignatureVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}, nil
}

// Verify checks header against body. Several v1 values are accepted during secret rotation.
func (v *SignatureVerifier) Verify(body []byte, header string) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	signedAt := time.Unix(ts, 0)
	if d := v.now().Sub(signedAt); d > v.tolerance || d < -v.tolerance {
		return ErrSignatureExpired
	}

	expected := v.mac(ts, body)
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

// Sign produces a header value for body at t
func (v *SignatureVerifier) Sign(body []byte, t time.Time) string {
	ts := t.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(v.mac(ts, body)))
}

func (v *SignatureVerifier) mac(ts int64, body []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write([]byte(strconv.FormatInt(ts, 10)))
	m.Write([]byte("."))
	m.Write(body)
	return m.Sum(nil)
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var (
		ts    int64
		found bool
		sigs  [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, ErrMalformedSignature
		}
		switch key {
		case "t":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedSignature
			}
			ts, found = n, true
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				return 0, nil, ErrMalformedSignature
			}
			sigs = append(sigs, sig)
		}
		// Unknown schemes are ignored
	}
	if !found || len(sigs) == 0 {
		return 0, nil, ErrMalformedSignature
	}
	return ts, sigs, nil
}
