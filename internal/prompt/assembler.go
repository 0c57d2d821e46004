// Package prompt implements C7: pure, role-scoped prompt construction.
//
// Grounded on the teacher's cmd/ao/rpi_phased_context.go buildPromptForPhase
// (text/template per phase, a preamble of standing instructions rendered
// first so it survives context compaction, then phase-specific body),
// generalized from its fixed discovery/implementation/validation phases to
// the five AgentRole variants.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/agentops/ralph/internal/types"
)

// Input is everything Assemble needs; identical Input always yields an
// identical prompt (spec.md §4.7: "no hidden global state").
type Input struct {
	Role          types.AgentRole
	Task          types.Task
	SessionToken  string
	Feedback      string   // accumulated feedback from prior iterations, optional
	AllowPatterns []string // test-writing allow-list, optional
	Guidance      string   // free-form extra directive, optional
}

// requiredSignal maps each role to the completion-signal kind its prompt
// instructs the agent to emit (spec.md §3's AgentRole contract).
var requiredSignal = map[types.AgentRole]types.SignalKind{
	types.RoleImplementation: types.SignalTaskDone,
	types.RoleTestWriting:    types.SignalTestsDone,
	types.RoleReview:         types.SignalReviewApproved,
	types.RoleFix:            types.SignalFixDone,
	types.RolePlanning:       types.SignalUIPlan,
}

const preamble = `You are operating under session token: {{.SessionToken}}
Your completion signal MUST carry this exact token as its session attribute,
character for character. A signal with any other token is rejected.

Task: {{.Task.ID}} — {{.Task.Title}}
{{.Task.Description}}

Acceptance criteria:
{{range .Task.AcceptanceCriteria}}- {{.}}
{{end}}
`

var roleDirective = map[types.AgentRole]string{
	types.RoleImplementation: `You may write anywhere in the working tree. When the task's implementation
is complete, emit:
<task-done session="{{.SessionToken}}">summary of what you implemented</task-done>`,

	types.RoleTestWriting: `You may ONLY add or modify files matching one of these patterns; anything
else you write will be reverted before your signal is evaluated:
{{range .AllowPatterns}}  - {{.}}
{{end}}
When you have written tests covering the acceptance criteria, emit:
<tests-done session="{{.SessionToken}}">summary of tests written</tests-done>`,

	types.RoleReview: `This is a read-only review. Do not modify any file. Examine the
implementation and tests against the acceptance criteria above, then emit
exactly one of:
<review-approved session="{{.SessionToken}}">optional notes</review-approved>
<review-rejected session="{{.SessionToken}}">what must change and why</review-rejected>`,

	types.RoleFix: `The following gate or test failure must be fixed. Scope your changes to
addressing this failure only:

{{.Feedback}}

When the fix is complete, emit:
<fix-done session="{{.SessionToken}}">summary of the fix</fix-done>`,

	types.RolePlanning: `Propose a plan for the UI verification of this task's changes, without
making any changes yourself. When the plan is ready, emit:
<ui-plan session="{{.SessionToken}}">the plan</ui-plan>`,
}

// Assemble builds the complete prompt for in.Role. An unknown role is a
// programmer error, not a runtime condition — it returns an error rather
// than panicking so callers (and their tests) can handle it uniformly.
func Assemble(in Input) (string, error) {
	directive, ok := roleDirective[in.Role]
	if !ok {
		return "", fmt.Errorf("prompt: no template for role %q", in.Role)
	}

	var buf strings.Builder
	if err := render(&buf, "preamble", preamble, in); err != nil {
		return "", err
	}
	if err := render(&buf, "directive", directive, in); err != nil {
		return "", err
	}

	if in.Feedback != "" && in.Role != types.RoleFix {
		buf.WriteString("\nFeedback from the previous attempt:\n")
		buf.WriteString(in.Feedback)
		buf.WriteString("\n")
	}
	if in.Guidance != "" {
		buf.WriteString("\nAdditional guidance:\n")
		buf.WriteString(in.Guidance)
		buf.WriteString("\n")
	}

	return buf.String(), nil
}

// RequiredSignal returns the completion-signal kind role's prompt demands.
func RequiredSignal(role types.AgentRole) (types.SignalKind, bool) {
	kind, ok := requiredSignal[role]
	return kind, ok
}

func render(buf *strings.Builder, name, tmplStr string, data any) error {
	tmpl, err := template.New(name).Parse(tmplStr)
	if err != nil {
		return fmt.Errorf("prompt: parse %s template: %w", name, err)
	}
	if err := tmpl.Execute(buf, data); err != nil {
		return fmt.Errorf("prompt: execute %s template: %w", name, err)
	}
	return nil
}
