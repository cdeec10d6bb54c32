package signing

import (
	"fmt"
	"regexp"
	"strings"
)

// SignatureEnvelope is the parsed form of an Authorization header.
// Invariant: Expires > Created; a signature verifies only while now <= Expires.
type SignatureEnvelope struct {
	KeyID     string // "subscriber_id|unique_key_id|algorithm"
	Algorithm string
	Created   int64 // unix seconds
	Expires   int64 // unix seconds
	Headers   string
	Signature string // base64
}

// SignedHeaders is the fixed covered-headers list every signature commits to.
const SignedHeaders = "(created) (expires) digest"

// headerParamPattern tokenizes key="value" pairs. The "Signature " prefix is
// not required for a match, so headers without it still parse.
var headerParamPattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

// EncodeAuthHeader serializes an envelope into the wire header format.
// Field order is fixed and all values are double-quoted.
func EncodeAuthHeader(env SignatureEnvelope) string {
	return fmt.Sprintf(
		`Signature keyId="%s",algorithm="%s",created="%d",expires="%d",headers="%s",signature="%s"`,
		env.KeyID, env.Algorithm, env.Created, env.Expires, env.Headers, env.Signature,
	)
}

// DecodeAuthHeader parses an Authorization header into its key/value fields.
// Unknown fields are ignored and missing fields are simply absent from the
// result; the caller is responsible for rejecting results missing required
// keys.
func DecodeAuthHeader(header string) map[string]string {
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "Signature ")

	params := make(map[string]string)
	for _, match := range headerParamPattern.FindAllStringSubmatch(header, -1) {
		params[match[1]] = match[2]
	}
	return params
}

// ParseKeyID splits a keyId into subscriber_id, unique key id and algorithm.
func ParseKeyID(keyID string) (subscriberID, ukID, algorithm string, err error) {
	parts := strings.Split(keyID, "|")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid keyId format")
	}
	return parts[0], parts[1], parts[2], nil
}

// BuildKeyID assembles the wire keyId for a subscriber key.
func BuildKeyID(subscriberID, ukID, algorithm string) string {
	return fmt.Sprintf("%s|%s|%s", subscriberID, ukID, algorithm)
}
