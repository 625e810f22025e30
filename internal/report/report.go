// Package report renders the tiered diagnostic report emitted by the
// online CLI driver whenever a sample changes the diagnosis state.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	tier1Style     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	tier2Style     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	tier3Style     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	prognosisStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
)

// styled reports whether w looks like a terminal; when it doesn't, styling
// is a plain no-op so piped or redirected output stays readable.
func styled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

func apply(w io.Writer, style lipgloss.Style, text string) string {
	if styled(w) {
		return style.Render(text)
	}
	return text
}

// Render writes the tiered diagnostic report for one sample tick: a
// prognosis line, a Tier-1 block for candidates whose plausibility has
// reached 1.0 (VERIFIED), a Tier-2 block for lower-plausibility candidates
// with a per-symptom status, and a Tier-3 block for active discrepancies no
// candidate claims.
func Render(w io.Writer, sampleTimeMs uint64, diagnoses []model.DiagnosisResult, states map[string]model.NodeState, prognosisResult model.PrognosisResult, graph *model.Graph) {
	fmt.Fprintf(w, "%s\n", apply(w, headerStyle, fmt.Sprintf("[t=%dms] DIAGNOSTIC REPORT", sampleTimeMs)))
	fmt.Fprintf(w, "%s\n", apply(w, prognosisStyle, prognosisLine(prognosisResult)))

	var tier1, tier2 []model.DiagnosisResult
	claimed := make(map[string]struct{})
	for _, d := range diagnoses {
		for id := range d.ExpectedSymptoms {
			claimed[id] = struct{}{}
		}
		if d.Plausibility >= 1.0-1e-9 {
			tier1 = append(tier1, d)
		} else {
			tier2 = append(tier2, d)
		}
	}

	if len(tier1) > 0 {
		fmt.Fprintf(w, "%s\n", apply(w, tier1Style, "TIER 1 - VERIFIED"))
		for _, d := range tier1 {
			renderCandidate(w, d, states, graph, false)
		}
	}

	if len(tier2) > 0 {
		fmt.Fprintf(w, "%s\n", apply(w, tier2Style, "TIER 2 - HYPOTHESES"))
		for _, d := range tier2 {
			renderCandidate(w, d, states, graph, true)
		}
	}

	orphans := unclaimedActiveDiscrepancies(states, graph, claimed)
	if len(orphans) > 0 {
		fmt.Fprintf(w, "%s\n", apply(w, tier3Style, "TIER 3 - UNCLAIMED SYMPTOMS"))
		for _, id := range orphans {
			fmt.Fprintf(w, "  - %s\n", id)
		}
	}
}

func prognosisLine(r model.PrognosisResult) string {
	switch {
	case math.IsInf(r.TTC, 1):
		return "System stable; no critical failure path detected from this state."
	case r.TTC > 0:
		return fmt.Sprintf("WARNING: time-to-criticality for %s is %.0fms.", r.CriticalNodeID, r.TTC)
	case r.TTC == 0:
		return fmt.Sprintf("CRITICAL: %s has reached its criticality threshold.", r.CriticalNodeID)
	default:
		return fmt.Sprintf("Critical propagation stalled; prediction for %s overdue by %.0fms.", r.CriticalNodeID, math.Abs(r.TTC))
	}
}

func renderCandidate(w io.Writer, d model.DiagnosisResult, states map[string]model.NodeState, graph *model.Graph, withStatus bool) {
	fmt.Fprintf(w, "  %s (%s) - plausibility %.0f%%, robustness %.2f\n", d.Node.ID, d.Node.Name, d.Plausibility*100, d.Robustness)

	ids := make([]string, 0, len(d.ExpectedSymptoms))
	for id := range d.ExpectedSymptoms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var statuses map[string]string
	if withStatus {
		statuses = chainStatuses(graph, states, d.Node.ID)
	}

	for _, id := range ids {
		status := "CONFIRMED"
		if withStatus {
			var ok bool
			status, ok = statuses[id]
			if _, inStates := states[id]; !ok || !inStates {
				status = "MISSING"
			}
		}
		fmt.Fprintf(w, "    - %s: %s\n", id, status)
	}
}

// chainStatuses labels every discrepancy reachable forward from fmID as
// CONFIRMED (active), PENDING (inactive but its ancestor chain up to fmID
// is unbroken), or UNREACHABLE (inactive with a broken ancestor chain).
// The chain-validity walk mirrors the reference PrognosisManager's
// abandoned plausibility BFS (see DESIGN.md), repurposed here for
// per-symptom labeling rather than as a scoring function.
func chainStatuses(graph *model.Graph, states map[string]model.NodeState, fmID string) map[string]string {
	type item struct {
		id         string
		chainValid bool
	}

	statuses := make(map[string]string)
	visited := map[string]bool{fmID: true}
	queue := []item{{id: fmID, chainValid: true}}

	adj := make(map[string][]string)
	for _, e := range graph.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		isActive := curr.id == fmID
		if state, ok := states[curr.id]; ok && state.IsActive {
			isActive = true
		}

		var nextChainValid bool
		if node, ok := graph.NodeByID(curr.id); ok && node.Type == model.Discrepancy && curr.id != fmID {
			if isActive {
				statuses[curr.id] = "CONFIRMED"
				nextChainValid = true
			} else if curr.chainValid {
				statuses[curr.id] = "PENDING"
				nextChainValid = true
			} else {
				statuses[curr.id] = "UNREACHABLE"
				nextChainValid = false
			}
		} else {
			nextChainValid = isActive || curr.chainValid
		}

		for _, next := range adj[curr.id] {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, item{id: next, chainValid: nextChainValid})
		}
	}

	return statuses
}

func unclaimedActiveDiscrepancies(states map[string]model.NodeState, graph *model.Graph, claimed map[string]struct{}) []string {
	var orphans []string
	for _, node := range graph.Nodes {
		if node.Type != model.Discrepancy {
			continue
		}
		if _, isClaimed := claimed[node.ID]; isClaimed {
			continue
		}
		if state, ok := states[node.ID]; ok && state.IsActive {
			orphans = append(orphans, node.ID)
		}
	}
	sort.Strings(orphans)
	return orphans
}
