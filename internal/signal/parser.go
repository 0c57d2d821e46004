// Package signal implements C4: extraction of tagged completion signals
// from captured agent output and validation of the session token they must
// carry.
//
// Grounded on the teacher's cmd/ao/stream_parser.go line-oriented scanning
// discipline and internal/parser/extractor.go's regex-pattern-table idiom
// (there used for free-text knowledge-type detection; here narrowed to the
// spec's one strict tag grammar, `<kind session="TOKEN">body</kind>`). Go's
// RE2 engine has no backreferences, so the opening and closing tag names
// are captured separately and compared in code rather than matched with a
// `\1`-style backreference.
package signal

import (
	"regexp"

	"github.com/agentops/ralph/internal/types"
)

var markerPattern = regexp.MustCompile(
	`(?s)<(task-done|tests-done|review-approved|review-rejected|fix-done|ui-plan|ui-fix-done)\s+session="([^"]*)">(.*?)</([a-zA-Z-]+)>`,
)

// ParseAll extracts every well-formed signal marker from output, in the
// order they appear. A marker whose closing tag name does not match its
// opening tag is skipped as malformed rather than partially accepted.
func ParseAll(output string) []types.Signal {
	matches := markerPattern.FindAllStringSubmatch(output, -1)
	signals := make([]types.Signal, 0, len(matches))
	for _, m := range matches {
		openKind, token, body, closeKind := m[1], m[2], m[3], m[4]
		if openKind != closeKind {
			continue
		}
		signals = append(signals, types.Signal{
			Kind:         types.SignalKind(openKind),
			SessionToken: token,
			Content:      body,
		})
	}
	return signals
}

// Expect scans output for the last signal of wantKind (spec.md §4.4: "if
// multiple signals of the same kind are present, the last wins"; §4.8's
// tie-break: "only the signal expected for the current phase counts", so
// signals of other kinds present in the same output are ignored here, not
// treated as errors) and validates its session token against activeToken.
func Expect(output string, wantKind types.SignalKind, activeToken string) (types.Signal, error) {
	var found *types.Signal
	for _, sig := range ParseAll(output) {
		if sig.Kind != wantKind {
			continue
		}
		s := sig
		found = &s
	}
	if found == nil {
		return types.Signal{}, ErrNoSignal
	}
	if found.SessionToken != activeToken {
		return types.Signal{}, ErrInvalidToken
	}
	return *found, nil
}
