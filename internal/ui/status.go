package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// CollectionStatus is the document count of one tree and flavour.
type CollectionStatus struct {
	Tree    string `json:"tree"`
	Flavour string `json:"flavour"`
	Full    int    `json:"full"`
	Public  int    `json:"public"`
	// Objects is the number of objects in the Gramps database.
	Objects int `json:"objects"`
}

// CheckStatus summarises a consistency check.
type CheckStatus struct {
	Tree     string         `json:"tree"`
	Flavour  string         `json:"flavour"`
	Checked  int            `json:"checked"`
	Counts   map[string]int `json:"counts"`
	Duration time.Duration  `json:"duration_ns"`
	Repaired bool           `json:"repaired,omitempty"`
}

// StatusInfo is rendered by the status and check commands.
type StatusInfo struct {
	IndexURI       string             `json:"index_uri"`
	EmbedderModel  string             `json:"embedder_model,omitempty"`
	EmbedderStatus string             `json:"embedder_status"`
	Collections    []CollectionStatus `json:"collections"`
	Checks         []CheckStatus      `json:"checks,omitempty"`
}

// StatusRenderer writes StatusInfo as text or JSON.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Search index: "+displayURI(info.IndexURI)))

	_, _ = fmt.Fprintf(r.out, "  Semantic search: %s", r.renderStatus(info.EmbedderStatus))
	if info.EmbedderModel != "" {
		_, _ = fmt.Fprintf(r.out, " (%s)", info.EmbedderModel)
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out)

	if len(info.Collections) > 0 {
		_, _ = fmt.Fprintf(r.out, "  %-20s %-9s %9s %9s %9s\n", "TREE", "FLAVOUR", "OBJECTS", "FULL", "PUBLIC")
		for _, c := range info.Collections {
			_, _ = fmt.Fprintf(r.out, "  %-20s %-9s %9d %9d %9d\n", c.Tree, c.Flavour, c.Objects, c.Full, c.Public)
		}
		_, _ = fmt.Fprintln(r.out)
	}

	for _, c := range info.Checks {
		r.renderCheck(c)
	}
	return nil
}

func (r *StatusRenderer) renderCheck(c CheckStatus) {
	problems := 0
	kinds := make([]string, 0, len(c.Counts))
	for k, n := range c.Counts {
		if k != "missing" {
			problems += n
		}
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	verdict := r.styles.Success.Render("consistent")
	if problems > 0 {
		verdict = r.styles.Error.Render(fmt.Sprintf("%d inconsistencies", problems))
		if c.Repaired {
			verdict += " " + r.styles.Success.Render("(repaired)")
		}
	}
	_, _ = fmt.Fprintf(r.out, "  %s/%s: %s, %d objects checked in %s\n",
		c.Tree, c.Flavour, verdict, c.Checked, c.Duration.Round(time.Millisecond))
	for _, k := range kinds {
		if c.Counts[k] > 0 {
			_, _ = fmt.Fprintf(r.out, "    %-14s %d\n", k+":", c.Counts[k])
		}
	}
}

func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "enabled", "ready":
		return r.styles.Success.Render(status)
	case "disabled":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

func displayURI(uri string) string {
	if uri == "" {
		return "in memory"
	}
	return uri
}
