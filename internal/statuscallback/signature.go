// Package statuscallback signs and verifies form-encoded delivery status
// callbacks. The signature is base64(HMAC-SHA1(token, url + sorted key/value
// pairs)), sent in the X-Status-Signature header.
package statuscallback

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

const Header = "X-Status-Signature"

// Form field names of a callback.
const (
	FieldMessageID = "MessageId"
	FieldStatus    = "MessageStatus"
	FieldError     = "ErrorMessage"
)

// Sign computes the signature for form posted to fullURL. Only the first
// value of each key is covered.
func Sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether provided is the signature of form. An empty token
// never verifies.
func Verify(token, fullURL, provided string, form url.Values) bool {
	if token == "" || provided == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(token, fullURL, form)), []byte(provided))
}
