package mind

import (
	"fmt"
	"strings"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

// buildWakeupTurn assembles the single seed user turn for one wakeup (spec
// §4.3 step 5: "mind system prompt, runtime identity, priority stack text,
// scratchpad markdown, injected events since last wake, runtime/budget
// snapshot").
func buildWakeupTurn(identity *models.Identity, stack []PriorityItem, scratchpad string, events []Event, budgetUsed, budgetTotal float64) string {
	var b strings.Builder
	b.WriteString("You are the autonomous mind: a background process that wakes periodically, reviews standing priorities, and takes at most a few small, well-justified actions before going back to sleep.\n\n")

	if identity != nil {
		fmt.Fprintf(&b, "Identity: %s. Purpose: %s.\n\n", identity.DisplayName, identity.Purpose)
	}

	b.WriteString("Priority stack:\n")
	if len(stack) == 0 {
		b.WriteString("(nothing outstanding)\n")
	}
	for _, item := range stack {
		fmt.Fprintf(&b, "- [%s] %s\n", item.Category, item.Text)
	}
	b.WriteString("\n")

	b.WriteString("Scratchpad:\n")
	if scratchpad == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(scratchpad)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(events) > 0 {
		b.WriteString("Events since last wake:\n")
		for _, e := range events {
			fmt.Fprintf(&b, "- (%s) %s\n", e.CreatedAt.Format(time.RFC3339), e.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Budget used today: $%.4f of $%.4f allotted to this wakeup cycle.\n\n", budgetUsed, budgetTotal)
	b.WriteString("Decide what, if anything, needs doing right now. Update the scratchpad with anything worth remembering for next time, set the next wakeup interval, and only notify the owner if something is truly message-worthy.")
	return b.String()
}
