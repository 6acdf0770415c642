package remote

import (
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Quote quotes one shell word. A leading "~/" stays unquoted so the remote
// shell still expands it to the login home.
func Quote(word string) string {
	switch {
	case word == "~":
		return word
	case strings.HasPrefix(word, "~/"):
		rest := word[2:]
		if rest == "" {
			return "~/"
		}
		return "~/" + shellquote.Join(rest)
	}
	return shellquote.Join(word)
}

// QuoteAll quotes and joins words with spaces
func QuoteAll(words ...string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = Quote(w)
	}
	return strings.Join(quoted, " ")
}

// TailCommand builds the remote tail pipeline. The follower runs in the
// background while the foreground waits on stdin, so closing stdin stops it.
func TailCommand(path string, fromStart bool, lines int) string {
	start := "+1"
	if !fromStart {
		if lines < 0 {
			lines = 0
		}
		start = strconv.Itoa(lines)
	}
	return "tail -n " + start + " -F " + Quote(path) + " 2>/dev/null & T=$!; cat >/dev/null; kill $T 2>/dev/null"
}
