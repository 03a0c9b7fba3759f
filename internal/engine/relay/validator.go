package relay

import "net/url"

// IsValidWebhookURL reports whether raw is a plausible webhook endpoint.
// HTTPS is required, except plain HTTP to loopback hosts for local
// development.
func IsValidWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "https":
		return u.Hostname() != ""
	case "http":
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1"
	default:
		return false
	}
}
