// Package middleware carries the HTTP middleware of the remote surface.
package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	ContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"
	XFrameOptions         = "DENY"
	XContentTypeOptions   = "nosniff"
	ReferrerPolicy        = "no-referrer"
)

// SecurityHeaders adds the standard security headers to every response. The
// remote surface serves JSON only, so the policy can be strict.
type SecurityHeaders struct {
	logger *logrus.Logger
}

func NewSecurityHeaders(logger *logrus.Logger) *SecurityHeaders {
	return &SecurityHeaders{logger: logger}
}

func (s *SecurityHeaders) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", ContentSecurityPolicy)
		w.Header().Set("X-Frame-Options", XFrameOptions)
		w.Header().Set("X-Content-Type-Options", XContentTypeOptions)
		w.Header().Set("Referrer-Policy", ReferrerPolicy)
		next.ServeHTTP(w, r)
	})
}
