package analytics

import "context"

type pageURLKey struct{}

// WithPageURL attaches the addressable page the caller is on. Events tracked
// with a context lacking one get a null url.
func WithPageURL(ctx context.Context, url string) context.Context {
	if url == "" {
		return ctx
	}
	return context.WithValue(ctx, pageURLKey{}, url)
}

// PageURL returns the page url carried by ctx, if any.
func PageURL(ctx context.Context) (string, bool) {
	url, ok := ctx.Value(pageURLKey{}).(string)
	return url, ok
}
