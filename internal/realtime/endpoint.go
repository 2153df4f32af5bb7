package realtime

import (
	"fmt"
	"net/url"
)

// EndpointURL derives the realtime websocket URL from the hub's base HTTP
// URL: same host and port, scheme upgraded to ws/wss, path /ws/client.
func EndpointURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse hub url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported hub url scheme %q", u.Scheme)
	}

	u.Path = "/ws/client"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
