package replydetect

import "strings"

// reply prefixes in the locales our outreach runs in
var replyPrefixes = []string{"re:", "aw:", "sv:", "antw:", "res:"}

// IsReplySubject reports whether the subject carries a reply prefix.
func IsReplySubject(subject string) bool {
	s := strings.ToLower(strings.TrimSpace(subject))
	for _, p := range replyPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// NormalizeSubject strips reply/forward prefixes (repeatedly, mail clients
// stack them) and lowercases, so "RE: Re: Intro" compares equal to "Intro".
func NormalizeSubject(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))
	for {
		stripped := false
		for _, p := range append(replyPrefixes, "fwd:", "fw:") {
			if strings.HasPrefix(s, p) {
				s = strings.TrimSpace(s[len(p):])
				stripped = true
			}
		}
		if !stripped {
			return s
		}
	}
}
