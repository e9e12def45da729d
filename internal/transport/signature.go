package transport

import (
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
)

// SignatureValidator checks the X-Twilio-Signature header Twilio attaches
// to webhook requests.
// See: https://www.twilio.com/docs/usage/security#validating-requests
type SignatureValidator struct {
	validator client.RequestValidator
}

func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{validator: client.NewRequestValidator(authToken)}
}

// Validate checks the signature against the canonical URL plus the form
// parameters. ParseForm must have been called on the request.
func (v *SignatureValidator) Validate(r *http.Request, signature string) bool {
	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}
	return v.validator.Validate(canonicalURL(r), params, signature)
}

// canonicalURL reconstructs the public URL Twilio signed, which differs
// from the request URL when the service sits behind a reverse proxy.
func canonicalURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	} else if orig := r.Header.Get("X-Original-Host"); orig != "" {
		host = orig
	}
	if port := r.Header.Get("X-Forwarded-Port"); port != "" && !strings.Contains(host, ":") {
		host = host + ":" + port
	}

	return scheme + "://" + host + r.URL.RequestURI()
}
