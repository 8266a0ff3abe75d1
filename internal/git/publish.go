package git

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Cloudsky01/relstage/internal/logging"
	"github.com/Cloudsky01/relstage/internal/paths"
	"github.com/Cloudsky01/relstage/internal/stage"
)

// DefaultMessage is expanded with {commit}, {short} and {channel}
const DefaultMessage = "Stage {short} for {channel}"

// ProtectedFiles are never added by the publisher, at any depth. They hold
// the token when the work directory doubles as the project directory.
var ProtectedFiles = []string{".env", paths.EnvFileName}

// Publisher commits the work directory and pushes it to a remote branch.
// The push runs even when there is nothing new to commit, so a commit left
// behind by a failed push still reaches the remote.
type Publisher struct {
	Runner  Runner
	Dir     string
	Remote  string
	Branch  string
	Message string
	// Exclude adds file names to ProtectedFiles
	Exclude []string
	Logger  *slog.Logger
}

func (p *Publisher) Name() string { return "git" }

func (p *Publisher) Publish(ctx context.Context, res *stage.Result) error {
	logger := logging.Ensure(p.Logger).With("component", "git-publisher", "commit", res.Commit.Short())

	if _, err := p.git(ctx, p.addArgs()...); err != nil {
		return err
	}
	staged, err := p.git(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return err
	}
	if strings.TrimSpace(staged) == "" {
		logger.Info("nothing to commit")
	} else if _, err := p.git(ctx, "commit", "-m", p.message(res)); err != nil {
		return err
	}

	remote := p.Remote
	if remote == "" {
		remote = DefaultRemote
	}
	if _, err := p.git(ctx, "push", remote, "HEAD:"+p.Branch); err != nil {
		return err
	}
	logger.Info("pushed staged build", "remote", remote, "branch", p.Branch)
	return nil
}

func (p *Publisher) addArgs() []string {
	args := []string{"add", "-A", "--", "."}
	for _, name := range append(append([]string{}, ProtectedFiles...), p.Exclude...) {
		args = append(args, ":(exclude,glob)**/"+name)
	}
	return args
}

func (p *Publisher) message(res *stage.Result) string {
	msg := p.Message
	if msg == "" {
		msg = DefaultMessage
	}
	return strings.NewReplacer(
		"{commit}", res.Commit.String(),
		"{short}", res.Commit.Short(),
		"{channel}", string(res.Channel),
	).Replace(msg)
}

func (p *Publisher) git(ctx context.Context, args ...string) (string, error) {
	return p.Runner.Run(ctx, p.Dir, "git", args...)
}
