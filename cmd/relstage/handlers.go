package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/config"
	"github.com/Cloudsky01/relstage/internal/paths"
	"github.com/Cloudsky01/relstage/internal/release"
	"github.com/Cloudsky01/relstage/internal/stage"
	"github.com/Cloudsky01/relstage/internal/state"
	"github.com/Cloudsky01/relstage/pkg/models"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

const divider = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

func printSuccessSummary(w io.Writer, configPath string, cfg *config.Config) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, dividerStyle.Render(divider))
	fmt.Fprintln(w, successStyle.Render("✅ Configuration created successfully!"))
	fmt.Fprintln(w, dividerStyle.Render(divider))
	fmt.Fprintln(w)

	fmt.Fprintln(w, labelStyle.Render("📁 Config file: ")+infoStyle.Render(configPath))
	fmt.Fprintln(w, labelStyle.Render("📦 Repository:  ")+infoStyle.Render(cfg.Repository))
	fmt.Fprintln(w, labelStyle.Render("🌿 Branch:      ")+infoStyle.Render(cfg.Branch))
	fmt.Fprintln(w, labelStyle.Render("⚙️  Workflow:    ")+infoStyle.Render(cfg.Workflow))
	fmt.Fprintln(w, labelStyle.Render("🚚 Channel:     ")+infoStyle.Render(cfg.Channel))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("🚀 Next steps:"))
	fmt.Fprintln(w, infoStyle.Render("   export GITHUB_TOKEN=...   # Token with actions:read"))
	fmt.Fprintln(w, infoStyle.Render("   relstage                  # Stage the branch head"))
	fmt.Fprintln(w, infoStyle.Render("   relstage --help           # See all options"))
	fmt.Fprintln(w)
}

func printReport(w io.Writer, r *release.Report) {
	fmt.Fprintln(w)
	if r.Skipped {
		fmt.Fprintln(w, infoStyle.Render("• "+r.Commit.Short()+" already staged, nothing to do"))
	} else {
		fmt.Fprintln(w, successStyle.Render("✓ Staged "+r.Commit.Short()+" for "+string(r.Channel)))
	}

	fmt.Fprintln(w, labelStyle.Render("  Directory: ")+infoStyle.Render(r.Dir))
	if r.Run != nil {
		fmt.Fprintln(w, labelStyle.Render("  Run:       ")+infoStyle.Render(fmt.Sprintf("%d", r.Run.ID)))
	}
	if r.Artifact != nil {
		fmt.Fprintln(w, labelStyle.Render("  Artifact:  ")+infoStyle.Render(fmt.Sprintf("%s (%d)", r.Artifact.Name, r.Artifact.ID)))
	}
	if len(r.Published) > 0 {
		fmt.Fprintln(w, labelStyle.Render("  Published: ")+infoStyle.Render(strings.Join(r.Published, ", ")))
	}
	fmt.Fprintln(w, labelStyle.Render("  Took:      ")+infoStyle.Render(r.Duration.Round(time.Second).String()))
	fmt.Fprintln(w)
}

func printHistory(w io.Writer, h *state.History, limit int) {
	fmt.Fprintln(w, headerStyle.Render("Staging history for "+h.Repository))
	fmt.Fprintln(w, dividerStyle.Render(divider))

	if len(h.Entries) == 0 {
		fmt.Fprintln(w, infoStyle.Render("No commits staged yet."))
		return
	}

	entries := h.Entries
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			labelStyle.Render(models.CommitRef(e.Commit).Short()),
			outcomeStyle(e.Outcome).Render(fmt.Sprintf("%-9s", e.Outcome)),
			infoStyle.Render(fmt.Sprintf("%-12s", e.Channel)),
			dividerStyle.Render(e.At.Local().Format(time.DateTime)),
			dirState(e.Dir),
		)
	}
}

// dirState tells whether a recorded directory is still on disk and carries
// its completion marker
func dirState(dir string) string {
	if dir == "" {
		return infoStyle.Render("-")
	}
	_, err := stage.ReadMarker(dir)
	switch {
	case err == nil:
		return successStyle.Render("complete")
	case !errors.Is(err, apperr.ErrNotFound):
		return warnStyle.Render("unreadable")
	}
	if _, statErr := os.Stat(dir); statErr != nil {
		return infoStyle.Render("removed")
	}
	return warnStyle.Render("incomplete")
}

func outcomeStyle(o state.Outcome) lipgloss.Style {
	switch o {
	case state.OutcomePublished:
		return successStyle
	case state.OutcomeStaged:
		return headerStyle
	default:
		return infoStyle
	}
}

func handleMissingConfig(w io.Writer, p *paths.Paths) {
	fmt.Fprintln(w, warnStyle.Render("⚠ No configuration file found"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("To get started, run:"))
	fmt.Fprintln(w, infoStyle.Render("  relstage init"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, infoStyle.Render("Or specify a repository:"))
	fmt.Fprintln(w, infoStyle.Render("  relstage --repo owner/repo"))
	if p != nil {
		fmt.Fprintln(w, infoStyle.Render("Searched: "+p.UserConfigFile()))
		if project := p.ProjectConfigFile(); project != "" {
			fmt.Fprintln(w, infoStyle.Render("          "+project))
		}
	}
	fmt.Fprintln(w)
}
