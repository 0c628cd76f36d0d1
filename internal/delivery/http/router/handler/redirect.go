package handler

import (
	"net/url"
	"strings"
)

// localNext returns next when it is a path on this site and "" otherwise, so callbacks cannot be
// used to bounce the browser to another host.
func localNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}

	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}

	return next
}
