package websocket

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

func normalizeOrigins(origins []string) (map[string]struct{}, bool) {
	normalized := make(map[string]struct{}, len(origins))
	allowAll := len(origins) == 0

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}

		o, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}
		normalized[o] = struct{}{}
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// checkOrigin admits requests without an Origin header (non-browser
// clients) and browser requests from an allowed origin
func (h *Hub) checkOrigin(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" || h.allowAll {
		return true
	}

	if o, ok := normalizeOrigin(header); ok {
		if _, allowed := h.origins[o]; allowed {
			return true
		}
	}

	log.Printf("Blocked WebSocket connection from disallowed origin: %q", header)
	return false
}
