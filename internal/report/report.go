// Package report renders fact-check sessions as JSON, Markdown and a short
// terminal summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Renderer writes session reports
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the session as indented JSON to path
func (r *Renderer) RenderJSON(sess *model.Session, path string) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(sess *model.Session, path string) error {
	return writeFile(path, []byte(r.Markdown(sess)))
}

// Markdown returns the Markdown report of a session
func (r *Renderer) Markdown(sess *model.Session) string {
	var b strings.Builder

	b.WriteString("# Fact Check Report\n\n")
	fmt.Fprintf(&b, "- **Input type:** %s\n", sess.InputType)
	if sess.SourceURL != "" {
		fmt.Fprintf(&b, "- **Source:** %s\n", sess.SourceURL)
	}
	if sess.OverallScore != nil {
		fmt.Fprintf(&b, "- **Overall score:** %d/100\n", *sess.OverallScore)
	}
	fmt.Fprintf(&b, "- **Claims:** %d\n\n", len(sess.Claims))

	b.WriteString("## Input\n\n")
	for _, line := range strings.Split(truncate(sess.Input, 1000), "\n") {
		fmt.Fprintf(&b, "> %s\n", line)
	}
	b.WriteString("\n")

	if sess.Summary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(sess.Summary)
		b.WriteString("\n\n")
	}

	b.WriteString("## Claims\n\n")
	if len(sess.Claims) == 0 {
		b.WriteString("No claims extracted.\n\n")
	}
	for _, c := range sess.Claims {
		r.writeClaim(&b, sess, c)
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("*Verdicts come from automated verification agents and may be wrong. Check the cited evidence.*\n")
	}

	return b.String()
}

func (r *Renderer) writeClaim(b *strings.Builder, sess *model.Session, c model.ProcessedClaim) {
	fmt.Fprintf(b, "### %d. %s\n\n", c.ID, c.ShortClaim)
	fmt.Fprintf(b, "- **Type:** %s\n", c.ClaimType)
	fmt.Fprintf(b, "- **Status:** %s\n", sess.ClaimStatus(c.ID))

	if res := c.EvidenceResult; res != nil {
		fmt.Fprintf(b, "- **Verdict:** %s [%s] (%d%% confidence)\n", res.Verdict, model.VerdictClass(res.Verdict), res.Confidence)
		if res.Explanation != "" {
			fmt.Fprintf(b, "- **Explanation:** %s\n", res.Explanation)
		}
	}

	if cc := c.ClaimChecks; cc != nil {
		fmt.Fprintf(b, "- **Logic:** %.2f", cc.LogicalScore)
		if cc.LogicalIssue != "" {
			fmt.Fprintf(b, " (%s)", cc.LogicalIssue)
		}
		b.WriteString("\n")
		fmt.Fprintf(b, "- **Tonality:** %.2f", cc.TonalityScore)
		if len(cc.TonalityFlags) > 0 {
			fmt.Fprintf(b, " (%s)", strings.Join(cc.TonalityFlags, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(c.Sources) > 0 {
		b.WriteString("| Domain | Credibility | Labels |\n")
		b.WriteString("|---|---|---|\n")
		for _, s := range c.Sources {
			fmt.Fprintf(b, "| %s | %.2f [%s] | %s |\n", s.Domain, s.DomainCredScore, model.CredibilityClass(s.DomainCredScore), strings.Join(s.TrustLabels, ", "))
		}
		b.WriteString("\n")
	}

	if res := c.EvidenceResult; res != nil {
		writeEvidence(b, "Supporting evidence", res.SupportingEvidence)
		writeEvidence(b, "Refuting evidence", res.RefutingEvidence)
	}
}

func writeEvidence(b *strings.Builder, heading string, items []model.EvidenceItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s**\n\n", heading)
	for _, e := range items {
		title := e.Title
		if title == "" {
			title = "source"
		}
		if e.URL != "" {
			fmt.Fprintf(b, "- [%s](%s)", title, e.URL)
		} else {
			fmt.Fprintf(b, "- %s", title)
		}
		if e.Snippet != "" {
			fmt.Fprintf(b, ": %s", truncate(e.Snippet, 300))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// RenderSummary prints a short per-claim summary to w
func (r *Renderer) RenderSummary(w io.Writer, sess *model.Session) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Session %s: %d claims\n", sess.ID, len(sess.Claims))
	if sess.OverallScore != nil {
		fmt.Fprintf(w, "Overall score: %d/100\n", *sess.OverallScore)
	}
	fmt.Fprintf(w, "\n")

	for _, c := range sess.Claims {
		verdict := "not checked"
		if res := c.EvidenceResult; res != nil {
			verdict = fmt.Sprintf("%s %s (%d%%)", classSymbol(model.VerdictClass(res.Verdict)), res.Verdict, res.Confidence)
		} else if st := sess.ClaimStatus(c.ID); st != model.StatusIdle {
			verdict = string(st)
		}
		fmt.Fprintf(w, "  [%d] %s\n      %s\n", c.ID, truncate(c.ShortClaim, 100), verdict)
	}

	if sess.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", sess.Summary)
	}
	fmt.Fprintf(w, "\n")
}

func classSymbol(class model.DisplayClass) string {
	switch class {
	case model.ClassSuccess:
		return "✓"
	case model.ClassDestructive:
		return "✗"
	case model.ClassWarning:
		return "⚠"
	default:
		return "•"
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Slug turns an input into a file name stem
func Slug(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "https://")
	input = strings.TrimPrefix(input, "http://")

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(input) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 60 {
			break
		}
	}

	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "input"
	}
	return s
}
