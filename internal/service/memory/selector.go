package memory

import (
	"github.com/sandevgo/recall/internal/core"
)

// Selection is the outcome of packing ranked candidates into a budget.
type Selection struct {
	Turns []core.Turn
	// Used includes the query's own cost.
	Used int
}

// Select walks ranked candidates and takes each one while the running cost
// fits the budget. The first candidate that does not fit ends the walk, even
// if a later one would. topK <= 0 means no cap.
func Select(ranked []core.ScoredCandidate, query string, budget, topK int, counter core.TokenCounter) Selection {
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	sel := Selection{
		Turns: make([]core.Turn, 0, len(ranked)),
		Used:  counter.Count(query),
	}

	for _, c := range ranked {
		cost := counter.Count(c.Role + ": " + c.Content)
		if sel.Used+cost > budget {
			break
		}
		sel.Used += cost
		sel.Turns = append(sel.Turns, core.Turn{Role: c.Role, Content: c.Content})
	}

	return sel
}
