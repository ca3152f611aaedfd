// Package gitlab implements the platform adapter for GitLab issues using
// the v4 REST API.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/oauth2"

	"github.com/hellausefulsoftware/vssue/api"
)

const defaultBaseURL = "https://gitlab.com"

// Adapter talks to GitLab. Comments are issue notes; reactions are award
// emoji on notes.
type Adapter struct {
	opts    api.Options
	baseURL string
}

// NewAdapter constructs a GitLab adapter from the session options.
func NewAdapter(opts api.Options) (api.Adapter, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, errors.New("gitlab: owner and repo are required")
	}
	if opts.Proxy == nil {
		opts.Proxy = api.IdentityProxy
	}

	baseURL := defaultBaseURL
	if opts.BaseURL != "" {
		baseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}

	return &Adapter{opts: opts, baseURL: baseURL}, nil
}

// Platform identifies GitLab and its capabilities.
func (a *Adapter) Platform() api.Platform {
	return api.Platform{
		Name:    "GitLab",
		Link:    a.baseURL,
		Version: "v4",
		Meta: api.PlatformMeta{
			Reactable: true,
			Sortable:  true,
		},
	}
}

func (a *Adapter) project() string {
	return a.opts.Owner + "/" + a.opts.Repo
}

func (a *Adapter) clientFor(token string) (*gitlab.Client, error) {
	apiURL := a.baseURL + "/api/v4"
	client, err := gitlab.NewOAuthClient(token, gitlab.WithBaseURL(apiURL))
	if err != nil {
		return nil, fmt.Errorf("gitlab: failed to create client: %w", err)
	}
	return client, nil
}

// GetIssue looks up an issue by iid, or by exact title among the issues
// carrying the configured labels. Returns (nil, nil) when none matches.
func (a *Adapter) GetIssue(ctx context.Context, params api.GetIssueParams) (*api.Issue, error) {
	client, err := a.clientFor(params.AccessToken)
	if err != nil {
		return nil, err
	}

	if params.IssueID != "" {
		iid, err := strconv.Atoi(params.IssueID)
		if err != nil {
			return nil, fmt.Errorf("gitlab: invalid issue id %q: %w", params.IssueID, err)
		}
		issue, resp, err := client.Issues.GetIssue(a.project(), iid, gitlab.WithContext(ctx))
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return nil, nil
			}
			return nil, wrapResponse(resp, err)
		}
		return convertIssue(issue), nil
	}

	labels := gitlab.LabelOptions(a.opts.Labels)
	issues, resp, err := client.Issues.ListProjectIssues(a.project(), &gitlab.ListProjectIssuesOptions{
		Labels: &labels,
		Search: gitlab.Ptr(params.IssueTitle),
		In:     gitlab.Ptr("title"),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapResponse(resp, err)
	}
	for _, issue := range issues {
		if issue.Title == params.IssueTitle {
			return convertIssue(issue), nil
		}
	}
	return nil, nil
}

// PostIssue creates the backing issue.
func (a *Adapter) PostIssue(ctx context.Context, params api.PostIssueParams) (*api.Issue, error) {
	client, err := a.clientFor(params.AccessToken)
	if err != nil {
		return nil, err
	}

	labels := gitlab.LabelOptions(a.opts.Labels)
	issue, resp, err := client.Issues.CreateIssue(a.project(), &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(params.Title),
		Description: gitlab.Ptr(params.Content),
		Labels:      &labels,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapResponse(resp, err)
	}
	return convertIssue(issue), nil
}

// GetComments lists one page of issue notes ordered by creation time.
// GitLab reports exact totals in its pagination headers, which are echoed
// back along with the confirmed page and page size.
func (a *Adapter) GetComments(ctx context.Context, params api.GetCommentsParams) (*api.Comments, error) {
	client, err := a.clientFor(params.AccessToken)
	if err != nil {
		return nil, err
	}

	iid, err := strconv.Atoi(params.IssueID)
	if err != nil {
		return nil, fmt.Errorf("gitlab: invalid issue id %q: %w", params.IssueID, err)
	}

	page := params.Query.Page
	if page < 1 {
		page = 1
	}
	perPage := params.Query.PerPage
	if perPage < 1 {
		perPage = 10
	}
	sort := "desc"
	if params.Query.Sort == api.SortAsc {
		sort = "asc"
	}

	notes, resp, err := client.Notes.ListIssueNotes(a.project(), iid, &gitlab.ListIssueNotesOptions{
		OrderBy: gitlab.Ptr("created_at"),
		Sort:    gitlab.Ptr(sort),
		ListOptions: gitlab.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapResponse(resp, err)
	}

	data := make([]*api.Comment, 0, len(notes))
	for _, note := range notes {
		// system notes record label and state churn, not conversation
		if note.System {
			continue
		}
		data = append(data, convertNote(note))
	}

	confirmedPage := resp.CurrentPage
	if confirmedPage == 0 {
		confirmedPage = page
	}
	confirmedPerPage := resp.ItemsPerPage
	if confirmedPerPage == 0 {
		confirmedPerPage = perPage
	}

	return &api.Comments{
		Count:   resp.TotalItems,
		Page:    confirmedPage,
		PerPage: confirmedPerPage,
		Data:    data,
	}, nil
}

// PostComment creates a note on the issue.
func (a *Adapter) PostComment(ctx context.Context, params api.PostCommentParams) (*api.Comment, error) {
	client, err := a.clientFor(params.AccessToken)
	if err != nil {
		return nil, err
	}

	iid, err := strconv.Atoi(params.IssueID)
	if err != nil {
		return nil, fmt.Errorf("gitlab: invalid issue id %q: %w", params.IssueID, err)
	}

	note, resp, err := client.Notes.CreateIssueNote(a.project(), iid, &gitlab.CreateIssueNoteOptions{
		Body: gitlab.Ptr(params.Content),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapResponse(resp, err)
	}
	return convertNote(note), nil
}

// PutComment edits an existing note.
func (a *Adapter) PutComment(ctx context.Context, params api.PutCommentParams) (*api.Comment, error) {
	client, err := a.clientFor(params.AccessToken)
	if err != nil {
		return nil, err
	}

	iid, noteID, err := a.noteRef(params.IssueID, params.CommentID)
	if err != nil {
		return nil, err
	}

	note, resp, err := client.Notes.UpdateIssueNote(a.project(), iid, noteID, &gitlab.UpdateIssueNoteOptions{
		Body: gitlab.Ptr(params.Content),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapResponse(resp, err)
	}
	return convertNote(note), nil
}

// DeleteComment removes an existing note.
func (a *Adapter) DeleteComment(ctx context.Context, params api.DeleteCommentParams) (bool, error) {
	client, err := a.clientFor(params.AccessToken)
	if err != nil {
		return false, err
	}

	iid, noteID, err := a.noteRef(params.IssueID, params.CommentID)
	if err != nil {
		return false, err
	}

	resp, err := client.Notes.DeleteIssueNote(a.project(), iid, noteID, gitlab.WithContext(ctx))
	if err != nil {
		return false, wrapResponse(resp, err)
	}
	return true, nil
}

// GetCommentReactions tallies the award emoji on a note.
func (a *Adapter) GetCommentReactions(ctx context.Context, params api.CommentReactionsParams) (*api.Reactions, error) {
	client, err := a.clientFor(params.AccessToken)
	if err != nil {
		return nil, err
	}

	iid, noteID, err := a.noteRef(params.IssueID, params.CommentID)
	if err != nil {
		return nil, err
	}

	tally := &api.Reactions{}
	opt := &gitlab.ListAwardEmojiOptions{PerPage: 100}
	for {
		awards, resp, err := client.AwardEmoji.ListIssuesAwardEmojiOnNote(
			a.project(), iid, noteID, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, wrapResponse(resp, err)
		}
		for _, award := range awards {
			switch award.Name {
			case "thumbsup":
				tally.Like++
			case "thumbsdown":
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

// PostCommentReaction adds one award emoji to a note.
func (a *Adapter) PostCommentReaction(ctx context.Context, params api.PostCommentReactionParams) (bool, error) {
	client, err := a.clientFor(params.AccessToken)
	if err != nil {
		return false, err
	}

	iid, noteID, err := a.noteRef(params.IssueID, params.CommentID)
	if err != nil {
		return false, err
	}

	var name string
	switch params.Reaction {
	case api.ReactionLike:
		name = "thumbsup"
	case api.ReactionUnlike:
		name = "thumbsdown"
	case api.ReactionHeart:
		name = "heart"
	default:
		return false, fmt.Errorf("gitlab: unsupported reaction %q", params.Reaction)
	}

	_, resp, err := client.AwardEmoji.CreateIssuesAwardEmojiOnNote(
		a.project(), iid, noteID, &gitlab.CreateAwardEmojiOptions{Name: name}, gitlab.WithContext(ctx))
	if err != nil {
		return false, wrapResponse(resp, err)
	}
	return true, nil
}

// GetUser fetches the profile of the token's account.
func (a *Adapter) GetUser(ctx context.Context, params api.GetUserParams) (*api.User, error) {
	client, err := a.clientFor(params.AccessToken)
	if err != nil {
		return nil, err
	}

	user, resp, err := client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapResponse(resp, err)
	}
	return &api.User{
		Username:    user.Username,
		AvatarURL:   user.AvatarURL,
		HomepageURL: user.WebURL,
	}, nil
}

// RedirectAuth navigates to the GitLab consent screen.
func (a *Adapter) RedirectAuth() error {
	if a.opts.Navigate == nil {
		return errors.New("gitlab: no navigation hook configured")
	}

	conf := a.oauthConfig()
	if a.opts.CurrentURL != nil {
		if redirect, err := a.opts.CurrentURL(); err == nil && redirect != "" {
			conf.RedirectURL = redirect
		}
	}
	return a.opts.Navigate(conf.AuthCodeURL(a.opts.State))
}

// HandleAuth inspects the current navigation context for an authorization
// code and exchanges it for an access token.
func (a *Adapter) HandleAuth(ctx context.Context) (string, error) {
	if a.opts.CurrentURL == nil {
		return "", nil
	}
	current, err := a.opts.CurrentURL()
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
	if state := query.Get("state"); state != "" && a.opts.State != "" && state != a.opts.State {
		return "", nil
	}

	conf := a.oauthConfig()
	conf.Endpoint.TokenURL = a.opts.Proxy(conf.Endpoint.TokenURL)

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("gitlab: token exchange failed: %w", err)
	}
	return token.AccessToken, nil
}

func (a *Adapter) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.opts.ClientID,
		ClientSecret: a.opts.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.baseURL + "/oauth/authorize",
			TokenURL: a.baseURL + "/oauth/token",
		},
		Scopes: []string{"api"},
	}
}

func (a *Adapter) noteRef(issueID, commentID string) (int, int, error) {
	iid, err := strconv.Atoi(issueID)
	if err != nil {
		return 0, 0, fmt.Errorf("gitlab: invalid issue id %q: %w", issueID, err)
	}
	noteID, err := strconv.Atoi(commentID)
	if err != nil {
		return 0, 0, fmt.Errorf("gitlab: invalid comment id %q: %w", commentID, err)
	}
	return iid, noteID, nil
}

func convertIssue(issue *gitlab.Issue) *api.Issue {
	if issue == nil {
		return nil
	}
	return &api.Issue{
		ID:      strconv.Itoa(issue.IID),
		Title:   issue.Title,
		Content: issue.Description,
		Link:    issue.WebURL,
	}
}

func convertNote(note *gitlab.Note) *api.Comment {
	if note == nil {
		return nil
	}
	c := &api.Comment{
		ID:      strconv.Itoa(note.ID),
		Content: note.Body,
		Author: api.User{
			Username:  note.Author.Username,
			AvatarURL: note.Author.AvatarURL,
		},
	}
	if note.CreatedAt != nil {
		c.CreatedAt = *note.CreatedAt
	}
	if note.UpdatedAt != nil {
		c.UpdatedAt = *note.UpdatedAt
	}
	return c
}

// wrapResponse attaches the HTTP status of a failed request so callers
// can tell authentication challenges apart from other failures.
func wrapResponse(resp *gitlab.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp != nil && resp.Response != nil {
		return api.NewRequestError(resp.StatusCode, err)
	}
	return err
}
