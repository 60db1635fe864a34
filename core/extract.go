package core

import "context"

// Extractor is the request-extraction collaborator: given a transport-specific
// request object it returns the raw bearer token, or ok=false when the request
// carries no credential. Failing to find a token is not an error.
type Extractor interface {
	Extract(ctx context.Context, req any) (token string, ok bool)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, req any) (string, bool)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, req any) (string, bool) {
	return f(ctx, req)
}

// StaticExtractor treats the request object itself as the raw token string.
// Useful when the host has already pulled the credential out of its transport.
func StaticExtractor() Extractor {
	return ExtractorFunc(func(_ context.Context, req any) (string, bool) {
		s, ok := req.(string)
		if !ok || s == "" {
			return "", false
		}
		return s, true
	})
}
