package digest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

const (
	topN    = 5
	unknown = "Unknown"
)

// Event is the subset of a GitHub event the reduction reads.
type Event struct {
	Type    string     `json:"type"`
	Repo    *EventRepo `json:"repo"`
	Payload struct {
		Commits json.RawMessage `json:"commits"`
	} `json:"payload"`
}

type EventRepo struct {
	Name string `json:"name"`
}

// Count is one histogram bucket.
type Count struct {
	Label string
	N     int
}

type Stats struct {
	Total        int
	EventTypes   []Count
	Repositories []Count
	Commits      int
	PullRequests int
	Issues       int
}

// ParseEvents decodes an upstream events body, which must be a JSON array.
func ParseEvents(body []byte) ([]Event, error) {
	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

// Reduce folds events into bounded histograms and counters. Histograms keep
// the five largest buckets; equal counts keep first appearance order.
func Reduce(events []Event) Stats {
	types := newHistogram()
	repos := newHistogram()
	st := Stats{Total: len(events)}

	for _, ev := range events {
		typ := ev.Type
		if typ == "" {
			typ = unknown
		}
		types.add(typ)

		if ev.Repo != nil {
			name := ev.Repo.Name
			if name == "" {
				name = unknown
			}
			repos.add(name)
		}

		switch typ {
		case "PushEvent":
			st.Commits += arrayLen(ev.Payload.Commits)
		case "PullRequestEvent":
			st.PullRequests++
		case "IssuesEvent":
			st.Issues++
		}
	}

	st.EventTypes = types.top(topN)
	st.Repositories = repos.top(topN)
	return st
}

func arrayLen(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}

type histogram struct {
	order  []string
	counts map[string]int
}

func newHistogram() *histogram {
	return &histogram{counts: make(map[string]int)}
}

func (h *histogram) add(label string) {
	if _, ok := h.counts[label]; !ok {
		h.order = append(h.order, label)
	}
	h.counts[label]++
}

func (h *histogram) top(n int) []Count {
	out := make([]Count, 0, len(h.order))
	for _, label := range h.order {
		out = append(out, Count{Label: label, N: h.counts[label]})
	}
	slices.SortStableFunc(out, func(a, b Count) int {
		return b.N - a.N
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RenderSummary formats stats as the plain text block embedded in the
// prompt.
func RenderSummary(st Stats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Total Events: %d\n", st.Total)

	b.WriteString("\nEvent Types:\n")
	for _, c := range st.EventTypes {
		fmt.Fprintf(&b, "  - %s: %d\n", c.Label, c.N)
	}

	b.WriteString("\nTop Repositories:\n")
	for _, c := range st.Repositories {
		fmt.Fprintf(&b, "  - %s: %d events\n", c.Label, c.N)
	}

	b.WriteString("\nActivity Breakdown:\n")
	fmt.Fprintf(&b, "  - Commits: %d\n", st.Commits)
	fmt.Fprintf(&b, "  - Pull Requests: %d\n", st.PullRequests)
	fmt.Fprintf(&b, "  - Issues: %d\n", st.Issues)

	return b.String()
}

const promptTemplate = `Analyze this GitHub activity for user '%s' over the past %s:

%s

Create a concise, insightful digest that:
1. Highlights the most significant activities and patterns
2. Identifies the repositories that received the most attention
3. Summarizes the types of work done (commits, PRs, issues, etc.)
4. Notes any interesting trends or observations
5. Keep it under 300 words and use emojis to make it engaging

Format the response as a readable summary with bullet points where appropriate.`

func RenderPrompt(identity string, period Period, st Stats) string {
	return fmt.Sprintf(promptTemplate, identity, period, RenderSummary(st))
}
