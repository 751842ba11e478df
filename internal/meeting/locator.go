package meeting

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// threadMarker precedes the chat thread id in a Teams meeting link.
const threadMarker = "meetup-join/"

// maxThreadNameLen is the longest thread name Discord accepts.
const maxThreadNameLen = 100

var markupPattern = regexp.MustCompile(`<[^>]+>`)

// ExtractThreadID returns the chat thread id embedded in a meeting link: the
// text between "meetup-join/" and the next "/". The id is returned as found,
// still percent-encoded. ok is false when the marker or the closing slash is
// missing.
func ExtractThreadID(link string) (threadID string, ok bool) {
	i := strings.Index(link, threadMarker)
	if i < 0 {
		return "", false
	}
	rest := link[i+len(threadMarker):]
	end := strings.Index(rest, "/")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// Sanitize strips markup tags from chat message content.
func Sanitize(content string) string {
	return markupPattern.ReplaceAllString(content, "")
}

// ThreadName returns a readable name for a thread id, suitable as a title.
func ThreadName(threadID string) string {
	name := threadID
	if decoded, err := url.PathUnescape(threadID); err == nil {
		name = decoded
	}
	if utf8.RuneCountInString(name) > maxThreadNameLen {
		name = string([]rune(name)[:maxThreadNameLen])
	}
	return name
}
