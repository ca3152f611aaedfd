// Package github implements the platform adapter for GitHub issues using
// the REST v3 API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v45/github"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	oauth2github "golang.org/x/oauth2/github"

	"github.com/hellausefulsoftware/vssue/api"
)

const maxPerPage = 100

// Adapter talks to GitHub. All methods take the access token per call, so
// one adapter serves both the anonymous and the authenticated phases of a
// session.
type Adapter struct {
	opts      api.Options
	authState string
}

// NewAdapter constructs a GitHub adapter from the session options.
func NewAdapter(opts api.Options) (api.Adapter, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, errors.New("github: owner and repo are required")
	}
	if opts.Proxy == nil {
		opts.Proxy = api.IdentityProxy
	}

	state := opts.State
	if state == "" {
		state = uuid.NewString()
	}

	return &Adapter{opts: opts, authState: state}, nil
}

// Platform identifies GitHub and its capabilities.
func (a *Adapter) Platform() api.Platform {
	link := "https://github.com"
	if a.opts.BaseURL != "" {
		link = strings.TrimSuffix(a.opts.BaseURL, "/")
	}
	return api.Platform{
		Name:    "GitHub",
		Link:    link,
		Version: "v3",
		Meta: api.PlatformMeta{
			Reactable: true,
			Sortable:  true,
		},
	}
}

// GetIssue looks up an issue by id, or by exact title among the issues
// carrying the configured labels. Returns (nil, nil) when none matches.
func (a *Adapter) GetIssue(ctx context.Context, params api.GetIssueParams) (*api.Issue, error) {
	client, err := a.clientFor(ctx, params.AccessToken)
	if err != nil {
		return nil, err
	}

	if params.IssueID != "" {
		number, err := strconv.Atoi(params.IssueID)
		if err != nil {
			return nil, fmt.Errorf("github: invalid issue id %q: %w", params.IssueID, err)
		}
		issue, resp, err := client.Issues.Get(ctx, a.opts.Owner, a.opts.Repo, number)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return nil, nil
			}
			return nil, wrapResponse(resp, err)
		}
		return convertIssue(issue), nil
	}

	opt := &github.IssueListByRepoOptions{
		Labels:      a.opts.Labels,
		State:       "all",
		ListOptions: github.ListOptions{PerPage: maxPerPage},
	}
	for {
		issues, resp, err := client.Issues.ListByRepo(ctx, a.opts.Owner, a.opts.Repo, opt)
		if err != nil {
			return nil, wrapResponse(resp, err)
		}
		for _, issue := range issues {
			if issue.GetTitle() == params.IssueTitle {
				return convertIssue(issue), nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		opt.Page = resp.NextPage
	}
}

// PostIssue creates the backing issue, labeled so later title lookups find
// it.
func (a *Adapter) PostIssue(ctx context.Context, params api.PostIssueParams) (*api.Issue, error) {
	client, err := a.clientFor(ctx, params.AccessToken)
	if err != nil {
		return nil, err
	}

	labels := a.opts.Labels
	issue, resp, err := client.Issues.Create(ctx, a.opts.Owner, a.opts.Repo, &github.IssueRequest{
		Title:  github.String(params.Title),
		Body:   github.String(params.Content),
		Labels: &labels,
	})
	if err != nil {
		return nil, wrapResponse(resp, err)
	}
	return convertIssue(issue), nil
}

// GetComments lists one page of issue comments. GitHub caps the page size
// at 100 and does not report total counts on this endpoint, so the count
// is derived from the pagination headers.
func (a *Adapter) GetComments(ctx context.Context, params api.GetCommentsParams) (*api.Comments, error) {
	client, err := a.clientFor(ctx, params.AccessToken)
	if err != nil {
		return nil, err
	}

	number, err := strconv.Atoi(params.IssueID)
	if err != nil {
		return nil, fmt.Errorf("github: invalid issue id %q: %w", params.IssueID, err)
	}

	page := params.Query.Page
	if page < 1 {
		page = 1
	}
	perPage := params.Query.PerPage
	if perPage < 1 {
		perPage = 10
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	direction := "desc"
	if params.Query.Sort == api.SortAsc {
		direction = "asc"
	}

	comments, resp, err := client.Issues.ListComments(ctx, a.opts.Owner, a.opts.Repo, number,
		&github.IssueListCommentsOptions{
			Sort:      github.String("created"),
			Direction: github.String(direction),
			ListOptions: github.ListOptions{
				Page:    page,
				PerPage: perPage,
			},
		})
	if err != nil {
		return nil, wrapResponse(resp, err)
	}

	data := make([]*api.Comment, 0, len(comments))
	for _, c := range comments {
		data = append(data, convertComment(c))
	}

	count := (page-1)*perPage + len(data)
	if resp.NextPage != 0 {
		// not on the last page; the exact total is unknowable without
		// walking to it, report the upper bound instead
		count = resp.LastPage * perPage
	}

	return &api.Comments{
		Count:   count,
		Page:    page,
		PerPage: perPage,
		Data:    data,
	}, nil
}

// PostComment creates a comment on the issue.
func (a *Adapter) PostComment(ctx context.Context, params api.PostCommentParams) (*api.Comment, error) {
	client, err := a.clientFor(ctx, params.AccessToken)
	if err != nil {
		return nil, err
	}

	number, err := strconv.Atoi(params.IssueID)
	if err != nil {
		return nil, fmt.Errorf("github: invalid issue id %q: %w", params.IssueID, err)
	}

	comment, resp, err := client.Issues.CreateComment(ctx, a.opts.Owner, a.opts.Repo, number,
		&github.IssueComment{Body: github.String(params.Content)})
	if err != nil {
		return nil, wrapResponse(resp, err)
	}
	return convertComment(comment), nil
}

// PutComment edits an existing comment.
func (a *Adapter) PutComment(ctx context.Context, params api.PutCommentParams) (*api.Comment, error) {
	client, err := a.clientFor(ctx, params.AccessToken)
	if err != nil {
		return nil, err
	}

	commentID, err := strconv.ParseInt(params.CommentID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("github: invalid comment id %q: %w", params.CommentID, err)
	}

	comment, resp, err := client.Issues.EditComment(ctx, a.opts.Owner, a.opts.Repo, commentID,
		&github.IssueComment{Body: github.String(params.Content)})
	if err != nil {
		return nil, wrapResponse(resp, err)
	}
	return convertComment(comment), nil
}

// DeleteComment removes an existing comment.
func (a *Adapter) DeleteComment(ctx context.Context, params api.DeleteCommentParams) (bool, error) {
	client, err := a.clientFor(ctx, params.AccessToken)
	if err != nil {
		return false, err
	}

	commentID, err := strconv.ParseInt(params.CommentID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("github: invalid comment id %q: %w", params.CommentID, err)
	}

	resp, err := client.Issues.DeleteComment(ctx, a.opts.Owner, a.opts.Repo, commentID)
	if err != nil {
		return false, wrapResponse(resp, err)
	}
	return true, nil
}

// GetCommentReactions tallies the reactions on a comment.
func (a *Adapter) GetCommentReactions(ctx context.Context, params api.CommentReactionsParams) (*api.Reactions, error) {
	client, err := a.clientFor(ctx, params.AccessToken)
	if err != nil {
		return nil, err
	}

	commentID, err := strconv.ParseInt(params.CommentID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("github: invalid comment id %q: %w", params.CommentID, err)
	}

	tally := &api.Reactions{}
	opt := &github.ListOptions{PerPage: maxPerPage}
	for {
		reactions, resp, err := client.Reactions.ListIssueCommentReactions(
			ctx, a.opts.Owner, a.opts.Repo, commentID, opt)
		if err != nil {
			return nil, wrapResponse(resp, err)
		}
		for _, r := range reactions {
			switch r.GetContent() {
			case "+1":
				tally.Like++
			case "-1":
				tally.Unlike++
			case "heart":
				tally.Heart++
			}
		}
		if resp.NextPage == 0 {
			return tally, nil
		}
		opt.Page = resp.NextPage
	}
}

// PostCommentReaction adds one reaction to a comment.
func (a *Adapter) PostCommentReaction(ctx context.Context, params api.PostCommentReactionParams) (bool, error) {
	client, err := a.clientFor(ctx, params.AccessToken)
	if err != nil {
		return false, err
	}

	commentID, err := strconv.ParseInt(params.CommentID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("github: invalid comment id %q: %w", params.CommentID, err)
	}

	var content string
	switch params.Reaction {
	case api.ReactionLike:
		content = "+1"
	case api.ReactionUnlike:
		content = "-1"
	case api.ReactionHeart:
		content = "heart"
	default:
		return false, fmt.Errorf("github: unsupported reaction %q", params.Reaction)
	}

	_, resp, err := client.Reactions.CreateIssueCommentReaction(
		ctx, a.opts.Owner, a.opts.Repo, commentID, content)
	if err != nil {
		return false, wrapResponse(resp, err)
	}
	return true, nil
}

// GetUser fetches the profile of the token's account.
func (a *Adapter) GetUser(ctx context.Context, params api.GetUserParams) (*api.User, error) {
	client, err := a.clientFor(ctx, params.AccessToken)
	if err != nil {
		return nil, err
	}

	user, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, wrapResponse(resp, err)
	}
	return &api.User{
		Username:    user.GetLogin(),
		AvatarURL:   user.GetAvatarURL(),
		HomepageURL: user.GetHTMLURL(),
	}, nil
}

// RedirectAuth navigates to the GitHub consent screen.
func (a *Adapter) RedirectAuth() error {
	if a.opts.Navigate == nil {
		return errors.New("github: no navigation hook configured")
	}

	conf := a.oauthConfig()
	if redirect, err := a.currentURL(); err == nil && redirect != "" {
		conf.RedirectURL = redirect
	}
	return a.opts.Navigate(conf.AuthCodeURL(a.authState))
}

// HandleAuth inspects the current navigation context for an authorization
// code and exchanges it for an access token. The token endpoint is routed
// through the configured proxy, mirroring how browser hosts dodge the
// missing CORS headers on it.
func (a *Adapter) HandleAuth(ctx context.Context) (string, error) {
	current, err := a.currentURL()
	if err != nil || current == "" {
		return "", nil
	}

	u, err := url.Parse(current)
	if err != nil {
		return "", nil
	}
	query := u.Query()
	code := query.Get("code")
	if code == "" {
		return "", nil
	}
	if state := query.Get("state"); state != "" && state != a.authState {
		return "", nil
	}

	conf := a.oauthConfig()
	conf.Endpoint.TokenURL = a.opts.Proxy(conf.Endpoint.TokenURL)

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("github: token exchange failed: %w", err)
	}
	return token.AccessToken, nil
}

func (a *Adapter) oauthConfig() *oauth2.Config {
	endpoint := oauth2github.Endpoint
	if a.opts.BaseURL != "" {
		base := strings.TrimSuffix(a.opts.BaseURL, "/")
		endpoint = oauth2.Endpoint{
			AuthURL:  base + "/login/oauth/authorize",
			TokenURL: base + "/login/oauth/access_token",
		}
	}
	return &oauth2.Config{
		ClientID:     a.opts.ClientID,
		ClientSecret: a.opts.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{"public_repo"},
	}
}

func (a *Adapter) currentURL() (string, error) {
	if a.opts.CurrentURL == nil {
		return "", nil
	}
	return a.opts.CurrentURL()
}

// clientFor builds a client bound to the given token, anonymous when the
// token is empty.
func (a *Adapter) clientFor(ctx context.Context, token string) (*github.Client, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}

	if a.opts.BaseURL == "" {
		return github.NewClient(httpClient), nil
	}

	client, err := github.NewEnterpriseClient(a.opts.BaseURL, a.opts.BaseURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("github: invalid base URL %q: %w", a.opts.BaseURL, err)
	}
	return client, nil
}

func convertIssue(issue *github.Issue) *api.Issue {
	if issue == nil {
		return nil
	}
	return &api.Issue{
		ID:      strconv.Itoa(issue.GetNumber()),
		Title:   issue.GetTitle(),
		Content: issue.GetBody(),
		Link:    issue.GetHTMLURL(),
	}
}

func convertComment(comment *github.IssueComment) *api.Comment {
	if comment == nil {
		return nil
	}
	c := &api.Comment{
		ID:        strconv.FormatInt(comment.GetID(), 10),
		Content:   comment.GetBody(),
		CreatedAt: comment.GetCreatedAt(),
		UpdatedAt: comment.GetUpdatedAt(),
	}
	if user := comment.GetUser(); user != nil {
		c.Author = api.User{
			Username:    user.GetLogin(),
			AvatarURL:   user.GetAvatarURL(),
			HomepageURL: user.GetHTMLURL(),
		}
	}
	if r := comment.GetReactions(); r != nil {
		c.Reactions = &api.Reactions{
			Like:   r.GetPlusOne(),
			Unlike: r.GetMinusOne(),
			Heart:  r.GetHeart(),
		}
	}
	return c
}

// wrapResponse attaches the HTTP status of a failed request so callers
// can tell authentication challenges apart from other failures.
func wrapResponse(resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp != nil && resp.Response != nil {
		return api.NewRequestError(resp.StatusCode, err)
	}
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return api.NewRequestError(errResp.Response.StatusCode, err)
	}
	return err
}
