package session_test

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentops/ralph/internal/session"
	"github.com/agentops/ralph/internal/types"
)

// TestTaskStatusDigestRoundTripProperty is the property-based test
// spec.md §8 invariant 2 literally asks for: "For every artifact-status
// write, the integrity digest on disk after the write verifies against the
// canonical serialization of the written JSON." Generated against
// arbitrary task ids/passes/iteration combinations, grounded in the
// goadesign-goa-ai example repo's leanovate/gopter dependency.
func TestTaskStatusDigestRoundTripProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(params)

	taskIDGen := gen.IntRange(1, 999).Map(func(n int) string { return fmt.Sprintf("T-%03d", n) })

	properties.Property("write then read never reports tampering", prop.ForAll(
		func(ids []string, passes []bool, iterations []int) bool {
			store, err := session.New(t.TempDir())
			if err != nil {
				return false
			}
			err = store.MutateTaskStatus(func(ts *types.TaskStatus) error {
				for i, id := range ids {
					ts.Tasks[id] = types.TaskEntryStatus{
						Passes:     passes[i%len(passes)],
						Iterations: iterations[i%len(iterations)],
					}
				}
				return nil
			})
			if err != nil {
				return false
			}
			_, err = store.ReadTaskStatus()
			return err == nil
		},
		gen.SliceOfN(5, taskIDGen),
		gen.SliceOfN(5, gen.Bool()),
		gen.SliceOfN(5, gen.IntRange(0, 10)),
	))

	properties.TestingRun(t)
}
