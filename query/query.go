// Package query extracts pre-filled survey answers from the query
// string of a share URL. Keys become dynamic questions, values become
// query-origin answers.
package query

import (
	"strings"

	"github.com/backtalk/backtalk/model"
)

// Extract parses a raw, already percent-decoded query string into
// query-origin answers, preserving left-to-right order. The leading
// "?" is optional. The parse is all-or-nothing: any segment that is
// not a well-formed key=value pair makes the whole string unusable and
// Extract returns nil. Duplicate keys yield duplicate answers; merge
// semantics are the caller's business.
func Extract(raw string) []model.Answer {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return nil
	}

	segments := strings.Split(raw, "&")
	answers := make([]model.Answer, 0, len(segments))
	for _, seg := range segments {
		key, value, ok := cut(seg)
		if !ok {
			return nil
		}
		answers = append(answers, model.Answer{
			Key:    key,
			Value:  value,
			Origin: model.OriginQuery,
		})
	}
	return answers
}

// cut splits a key=value segment, rejecting segments with a missing
// "=", an empty side, or embedded whitespace.
func cut(seg string) (key, value string, ok bool) {
	i := strings.Index(seg, "=")
	if i < 1 || i == len(seg)-1 {
		return "", "", false
	}
	key, value = seg[:i], seg[i+1:]
	if strings.ContainsAny(seg, " \t") {
		return "", "", false
	}
	return key, value, true
}
