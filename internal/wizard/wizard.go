package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/Cloudsky01/relstage/internal/config"
	"github.com/Cloudsky01/relstage/internal/git"
	"github.com/Cloudsky01/relstage/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// AskConfirm shows a single yes/no question
func AskConfirm(title, description string, value *bool) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(value),
		),
	).Run()
}

// answers holds the raw form values before they become a Config
type answers struct {
	Repository string
	Branch     string
	Workflow   string
	Artifact   string
	Channel    string
	WorkDir    string
	HeadSource string
	Interval   string
	MaxRetries string
	Publish    bool
	PushBranch string
}

// Wizard handles the interactive configuration creation
type Wizard struct {
	defaults  *config.Config
	workflows []string
	answers   answers
}

// New prepares a wizard prefilled from defaults. workflows feeds the
// workflow select; when empty the workflow is typed in.
func New(defaults *config.Config, workflows []string) *Wizard {
	if defaults == nil {
		defaults = config.Default()
	}
	return &Wizard{
		defaults:  defaults,
		workflows: workflows,
		answers:   answersFrom(defaults),
	}
}

func answersFrom(c *config.Config) answers {
	return answers{
		Repository: c.Repository,
		Branch:     c.Branch,
		Workflow:   c.Workflow,
		Artifact:   c.Artifact,
		Channel:    c.Channel,
		WorkDir:    c.WorkDir,
		HeadSource: c.HeadSource,
		Interval:   c.Poll.Interval.String(),
		MaxRetries: strconv.Itoa(c.Poll.MaxRetries),
		Publish:    c.Publish.Git.Enabled,
		PushBranch: c.Publish.Git.Branch,
	}
}

// Run executes the interactive wizard
func (w *Wizard) Run() (*config.Config, error) {
	fmt.Println()
	fmt.Println(titleStyle.Render("relstage configuration"))
	if len(w.workflows) > 0 {
		fmt.Println(infoStyle.Render(fmt.Sprintf("Found %d workflow(s)", len(w.workflows))))
	}
	fmt.Println()

	if err := w.form().Run(); err != nil {
		return nil, err
	}
	return w.buildConfig()
}

func (w *Wizard) form() *huh.Form {
	a := &w.answers

	var workflowField huh.Field
	if len(w.workflows) > 0 {
		workflowField = huh.NewSelect[string]().
			Title("Workflow").
			Description("Workflow that builds the combined artifact").
			Options(workflowOptions(w.workflows, a.Workflow)...).
			Filtering(true).
			Value(&a.Workflow)
	} else {
		workflowField = huh.NewInput().
			Title("Workflow").
			Description("Workflow file name, e.g. runtime_build_and_test.yml").
			Validate(required("workflow")).
			Value(&a.Workflow)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Repository").
				Description("GitHub repository in owner/repo format").
				Placeholder("facebook/react").
				Validate(git.ValidateRepositoryFormat).
				Value(&a.Repository),
			huh.NewInput().
				Title("Branch").
				Description("Branch whose head commit is staged").
				Validate(git.ValidateBranchName).
				Value(&a.Branch),
			workflowField,
			huh.NewInput().
				Title("Artifact").
				Description("Name of the combined build artifact").
				Validate(required("artifact")).
				Value(&a.Artifact),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Channel").
				Options(huh.NewOptions(models.ChannelNames()...)...).
				Value(&a.Channel),
			huh.NewInput().
				Title("Work directory").
				Description("Checkout that receives <commit>/ directories").
				Validate(required("work directory")).
				Value(&a.WorkDir),
			huh.NewSelect[string]().
				Title("Head commit source").
				Options(
					huh.NewOption("git ls-remote", config.HeadSourceGit),
					huh.NewOption("GitHub GraphQL API", config.HeadSourceGraphQL),
				).
				Value(&a.HeadSource),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Poll interval").
				Description("Wait between workflow run checks, e.g. 30s").
				Validate(validateInterval).
				Value(&a.Interval),
			huh.NewInput().
				Title("Max polls").
				Validate(validateRetries).
				Value(&a.MaxRetries),
			huh.NewConfirm().
				Title("Commit and push staged builds?").
				Affirmative("Yes").
				Negative("No").
				Value(&a.Publish),
			huh.NewInput().
				Title("Push branch").
				Description("Branch of the work directory that receives the commit").
				Validate(git.ValidateBranchName).
				Value(&a.PushBranch),
		),
	)
}

// workflowOptions keeps current selectable even when it is not in the list
func workflowOptions(workflows []string, current string) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(workflows)+1)
	seen := false
	for _, wf := range workflows {
		if wf == current {
			seen = true
		}
		options = append(options, huh.NewOption(wf, wf))
	}
	if current != "" && !seen {
		options = append([]huh.Option[string]{huh.NewOption(current, current)}, options...)
	}
	return options
}

// buildConfig converts the wizard state to a Config
func (w *Wizard) buildConfig() (*config.Config, error) {
	a := w.answers
	cfg := *w.defaults

	cfg.Repository = strings.TrimSpace(a.Repository)
	cfg.Branch = strings.TrimSpace(a.Branch)
	cfg.Workflow = strings.TrimSpace(a.Workflow)
	cfg.Artifact = strings.TrimSpace(a.Artifact)
	cfg.Channel = strings.ToLower(strings.TrimSpace(a.Channel))
	cfg.WorkDir = strings.TrimSpace(a.WorkDir)
	cfg.HeadSource = a.HeadSource

	interval, err := time.ParseDuration(strings.TrimSpace(a.Interval))
	if err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}
	cfg.Poll.Interval = interval
	retries, err := strconv.Atoi(strings.TrimSpace(a.MaxRetries))
	if err != nil {
		return nil, fmt.Errorf("invalid max polls: %w", err)
	}
	cfg.Poll.MaxRetries = retries

	cfg.Publish.Git.Enabled = a.Publish
	cfg.Publish.Git.Branch = strings.TrimSpace(a.PushBranch)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not a duration: %s", s)
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}

func validateRetries(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}
