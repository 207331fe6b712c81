// Package auth guards operational endpoints with a static API key.
package auth

import (
	"crypto/subtle"
)

// Service checks presented API keys against the configured one.
// An empty configured key disables the check.
type Service struct {
	apiKey       string
	headerName   string
	queryName    string
	requireHTTPS bool
}

// NewService builds the key checker. When requireHTTPS is set, guarded routes
// refuse plain HTTP requests.
func NewService(apiKey string, requireHTTPS bool) *Service {
	return &Service{
		apiKey:       apiKey,
		headerName:   "X-API-Key",
		queryName:    "api_key",
		requireHTTPS: requireHTTPS,
	}
}

// Enabled reports whether a key is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.apiKey != ""
}

// Valid compares candidate with the configured key in constant time.
func (s *Service) Valid(candidate string) bool {
	if !s.Enabled() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.apiKey)) == 1
}
