package github

import (
	"context"
	"net/url"
	"strings"

	"github.com/shurcooL/githubv4"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/pkg/models"
)

// RunResolver binds a workflow and tracked branch so callers can resolve runs
// by commit alone.
type RunResolver struct {
	client   *Client
	workflow string
	branch   string
}

func (c *Client) Runs(workflow, branch string) *RunResolver {
	return &RunResolver{client: c, workflow: workflow, branch: branch}
}

func (r *RunResolver) ResolveRun(ctx context.Context, commit models.CommitRef) (*models.WorkflowRun, error) {
	return r.client.FindRunForCommit(ctx, r.workflow, commit, r.branch)
}

// HeadResolver reads a branch head through the GraphQL API, for hosts where
// git cannot reach the remote.
type HeadResolver struct {
	client *githubv4.Client
	owner  string
	name   string
}

func (c *Client) Heads() *HeadResolver {
	return &HeadResolver{
		client: githubv4.NewEnterpriseClient(graphqlEndpoint(c.baseURL), c.http),
		owner:  c.owner,
		name:   c.name,
	}
}

// graphqlEndpoint maps a REST base URL to the GraphQL endpoint. GitHub
// Enterprise serves REST under /api/v3 and GraphQL at /api/graphql.
func graphqlEndpoint(base *url.URL) string {
	p := strings.TrimSuffix(base.Path, "/")
	if prefix, ok := strings.CutSuffix(p, "/api/v3"); ok {
		u := *base
		u.Path = prefix + "/api/graphql"
		u.RawPath = ""
		return u.String()
	}
	return base.JoinPath("graphql").String()
}

func (h *HeadResolver) HeadCommit(ctx context.Context, branch string) (models.CommitRef, error) {
	var q struct {
		Repository struct {
			Ref *struct {
				Target struct {
					Oid githubv4.GitObjectID
				}
			} `graphql:"ref(qualifiedName: $ref)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	ref := branch
	if !strings.HasPrefix(ref, "refs/") {
		ref = "refs/heads/" + branch
	}
	vars := map[string]any{
		"owner": githubv4.String(h.owner),
		"name":  githubv4.String(h.name),
		"ref":   githubv4.String(ref),
	}

	if err := h.client.Query(ctx, &q, vars); err != nil {
		return "", apperr.Execution("graphql repository.ref "+ref, err)
	}

	if q.Repository.Ref == nil || q.Repository.Ref.Target.Oid == "" {
		return "", apperr.NotFound("branch %s not found in %s/%s", branch, h.owner, h.name)
	}
	return models.CommitRef(q.Repository.Ref.Target.Oid), nil
}
