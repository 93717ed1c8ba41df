package middleware

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"heirloom/pkg/requestcontext"
)

// Device parses the User-Agent into a compact "browser/os (mobile?)" summary
// that audit entries carry alongside the acting principal. Only the summary
// crosses into the domain; the raw header stays at the transport layer.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary := summarizeUserAgent(r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(requestcontext.WithDevice(r.Context(), summary)))
	})
}

func summarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()

	var b strings.Builder
	b.WriteString(name)
	if version != "" {
		b.WriteString("/")
		// Major version is enough for dispute resolution; full versions churn.
		if i := strings.IndexByte(version, '.'); i > 0 {
			version = version[:i]
		}
		b.WriteString(version)
	}
	if os := ua.OSInfo().Name; os != "" {
		b.WriteString(" ")
		b.WriteString(os)
	}
	if ua.Mobile() {
		b.WriteString(" mobile")
	}
	if ua.Bot() {
		b.WriteString(" bot")
	}
	return strings.TrimSpace(b.String())
}
