package store

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/hellausefulsoftware/vssue/api"
	"github.com/hellausefulsoftware/vssue/internal/logging"
)

// Init is the top-level initialization entry point: it resets the session,
// constructs the platform adapter, completes any pending authorization and
// then resolves the issue and loads its comments. Failures are absorbed
// into session flags: a 401/403 sets the login-required flag, anything
// else marks the session failed.
func (s *Store) Init(ctx context.Context) {
	err := s.initStore(ctx)
	if err == nil {
		err = s.initComments(ctx)
	}
	if err == nil {
		return
	}

	s.mu.Lock()
	if api.IsAuthError(err) {
		// the platform requires authentication to read this thread
		s.isLoginRequired = true
	} else {
		s.isFailed = true
	}
	s.mu.Unlock()
	logging.Error("failed to initialize comment thread", "error", err)
}

// initStore resets all session fields, constructs the adapter and handles
// authorization. The initializing flag is cleared however this exits.
func (s *Store) initStore(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.isInitializing = false
		s.mu.Unlock()
	}()

	s.mu.Lock()
	opts := s.opts
	if opts == nil {
		s.mu.Unlock()
		return errors.New("options are required to initialize the session")
	}

	s.adapter = nil
	s.accessToken = ""
	s.user = nil
	s.issue = nil
	s.comments = nil
	s.query = api.Query{Page: 1, PerPage: opts.PerPage, Sort: api.SortDesc}

	s.isInitializing = true
	s.isIssueNotCreated = false
	s.isLoginRequired = false
	s.isFailed = false
	s.isCreatingIssue = false
	s.isLoadingComments = false
	s.isCreatingComment = false
	s.isUpdatingComment = false

	s.gen++
	s.mu.Unlock()

	if opts.API == nil {
		return errors.New("no platform adapter constructor configured")
	}

	adapter, err := opts.API(api.Options{
		BaseURL:      opts.BaseURL,
		Owner:        opts.Owner,
		Repo:         opts.Repo,
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		State:        opts.State,
		Labels:       opts.Labels,
		Proxy:        opts.Proxy,
		Navigate:     opts.Navigate,
		CurrentURL:   opts.CurrentURL,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.adapter = adapter
	s.mu.Unlock()

	return s.HandleAuth(ctx)
}

// initComments resolves the issue and loads the first page of comments.
// With a configured issue id, the issue and comment fetches are dispatched
// together and both awaited; with a title, the issue is looked up first
// and comments only loaded when it exists.
func (s *Store) initComments(ctx context.Context) error {
	s.mu.Lock()
	adapter, opts, token, query := s.adapter, s.opts, s.accessToken, s.query
	s.mu.Unlock()
	if adapter == nil || opts == nil {
		return nil
	}

	if opts.IssueID != "" {
		var (
			issue    *api.Issue
			comments *api.Comments
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			issue, err = adapter.GetIssue(gctx, api.GetIssueParams{
				AccessToken: token,
				IssueID:     opts.IssueID,
			})
			return err
		})
		g.Go(func() error {
			var err error
			comments, err = adapter.GetComments(gctx, api.GetCommentsParams{
				AccessToken: token,
				IssueID:     opts.IssueID,
				Query:       query,
			})
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		s.mu.Lock()
		s.issue = issue
		s.comments = comments
		if comments != nil {
			s.query.Page = comments.Page
			s.query.PerPage = comments.PerPage
		}
		s.mu.Unlock()
		return nil
	}

	issue, err := adapter.GetIssue(ctx, api.GetIssueParams{
		AccessToken: token,
		IssueTitle:  s.IssueTitle(),
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.issue = issue
	s.mu.Unlock()

	if issue == nil {
		s.mu.Lock()
		s.isIssueNotCreated = true
		s.mu.Unlock()

		if opts.AutoCreateIssue {
			s.PostIssue(ctx)
		}
		return nil
	}

	_, err = s.getComments(ctx, false)
	return err
}

// PostIssue creates the backing issue for the current page. It is a no-op
// when an issue already exists or is pinned by id, defers to the login
// redirect when unauthenticated, and silently refuses callers that are
// neither owner nor admin. Failures mark the session failed and are not
// retried.
func (s *Store) PostIssue(ctx context.Context) {
	s.mu.Lock()
	adapter, opts := s.adapter, s.opts
	if adapter == nil || opts == nil || s.issue != nil || opts.IssueID != "" || s.isCreatingIssue {
		s.mu.Unlock()
		return
	}
	logined := s.isLogined()
	admin := s.isAdmin()
	token := s.accessToken
	s.mu.Unlock()

	if !logined {
		// creation resumes after the redirect round-trip re-runs Init
		s.Login()
		return
	}
	if !admin {
		return
	}

	s.mu.Lock()
	s.isCreatingIssue = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.isCreatingIssue = false
		s.mu.Unlock()
	}()

	fail := func(err error) {
		s.mu.Lock()
		s.isFailed = true
		s.mu.Unlock()
		logging.Error("failed to create issue", "error", err)
	}

	content, err := opts.IssueContent(ctx, IssueContentParams{
		Options: opts,
		URL:     cleanURL(opts.URL),
	})
	if err != nil {
		fail(err)
		return
	}

	issue, err := adapter.PostIssue(ctx, api.PostIssueParams{
		AccessToken: token,
		Title:       s.IssueTitle(),
		Content:     content,
	})
	if err != nil {
		fail(err)
		return
	}

	s.mu.Lock()
	s.issue = issue
	s.isIssueNotCreated = false
	s.mu.Unlock()

	if _, err := s.getComments(ctx, false); err != nil {
		fail(err)
	}
}

// GetComments loads the comment page described by the current query. The
// call is a no-op while another load is in flight. An authentication
// challenge received while unauthenticated is absorbed into the
// login-required flag; any other failure is forwarded to the error
// callback and returned.
func (s *Store) GetComments(ctx context.Context) (*api.Comments, error) {
	return s.getComments(ctx, true)
}

func (s *Store) getComments(ctx context.Context, emit bool) (*api.Comments, error) {
	s.mu.Lock()
	if s.adapter == nil || s.issue == nil || s.isLoadingComments {
		s.mu.Unlock()
		return nil, nil
	}
	s.isLoadingComments = true
	adapter := s.adapter
	token := s.accessToken
	issueID := s.issue.ID
	query := s.query
	logined := s.isLogined()
	gen := s.gen
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isLoadingComments = false
		s.mu.Unlock()
	}()

	comments, err := adapter.GetComments(ctx, api.GetCommentsParams{
		AccessToken: token,
		IssueID:     issueID,
		Query:       query,
	})
	if err != nil {
		if api.IsAuthError(err) && !logined {
			s.mu.Lock()
			s.isLoginRequired = true
			s.mu.Unlock()
			return nil, nil
		}
		if emit {
			s.emitError(err)
		}
		return nil, err
	}

	if comments == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// a re-initialization superseded this fetch; do not apply it
		return nil, nil
	}
	s.comments = comments

	// the platform may clamp the requested page or page size; the query
	// always reflects the confirmed values
	if s.query.Page != comments.Page {
		s.query.Page = comments.Page
	}
	if s.query.PerPage != comments.PerPage {
		s.query.PerPage = comments.PerPage
	}
	return comments, nil
}

// SetQuery applies one logical update to the pagination and sort
// parameters and triggers at most one reload. A page size change resets
// the page to 1. Zero-valued fields keep their current value.
func (s *Store) SetQuery(ctx context.Context, query api.Query) (*api.Comments, error) {
	s.mu.Lock()
	current := s.query
	if query.Page <= 0 {
		query.Page = current.Page
	}
	if query.PerPage <= 0 {
		query.PerPage = current.PerPage
	}
	if query.Sort == "" {
		query.Sort = current.Sort
	}
	if query == current {
		s.mu.Unlock()
		return nil, nil
	}
	if query.PerPage != current.PerPage {
		query.Page = 1
	}
	s.query = query
	s.mu.Unlock()

	return s.getComments(ctx, true)
}

// SetPage moves to another comment page and reloads.
func (s *Store) SetPage(ctx context.Context, page int) (*api.Comments, error) {
	return s.SetQuery(ctx, api.Query{Page: page})
}

// SetPerPage changes the page size, resetting to the first page, and
// reloads.
func (s *Store) SetPerPage(ctx context.Context, perPage int) (*api.Comments, error) {
	return s.SetQuery(ctx, api.Query{PerPage: perPage})
}

// SetSort changes the sort direction and reloads.
func (s *Store) SetSort(ctx context.Context, sort string) (*api.Comments, error) {
	return s.SetQuery(ctx, api.Query{Sort: sort})
}

// PostComment creates a comment on the issue. The call is a no-op while
// another comment creation is in flight.
func (s *Store) PostComment(ctx context.Context, content string) (*api.Comment, error) {
	s.mu.Lock()
	if s.adapter == nil || s.issue == nil || s.isCreatingComment {
		s.mu.Unlock()
		return nil, nil
	}
	s.isCreatingComment = true
	adapter, token, issueID := s.adapter, s.accessToken, s.issue.ID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isCreatingComment = false
		s.mu.Unlock()
	}()

	comment, err := adapter.PostComment(ctx, api.PostCommentParams{
		AccessToken: token,
		IssueID:     issueID,
		Content:     content,
	})
	if err != nil {
		s.emitError(err)
		return nil, err
	}
	return comment, nil
}

// PutComment edits an existing comment.
func (s *Store) PutComment(ctx context.Context, commentID, content string) (*api.Comment, error) {
	s.mu.Lock()
	if s.adapter == nil || s.issue == nil {
		s.mu.Unlock()
		return nil, nil
	}
	s.isUpdatingComment = true
	adapter, token, issueID := s.adapter, s.accessToken, s.issue.ID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isUpdatingComment = false
		s.mu.Unlock()
	}()

	comment, err := adapter.PutComment(ctx, api.PutCommentParams{
		AccessToken: token,
		IssueID:     issueID,
		CommentID:   commentID,
		Content:     content,
	})
	if err != nil {
		s.emitError(err)
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes an existing comment.
func (s *Store) DeleteComment(ctx context.Context, commentID string) (bool, error) {
	s.mu.Lock()
	if s.adapter == nil || s.issue == nil {
		s.mu.Unlock()
		return false, nil
	}
	s.isUpdatingComment = true
	adapter, token, issueID := s.adapter, s.accessToken, s.issue.ID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isUpdatingComment = false
		s.mu.Unlock()
	}()

	ok, err := adapter.DeleteComment(ctx, api.DeleteCommentParams{
		AccessToken: token,
		IssueID:     issueID,
		CommentID:   commentID,
	})
	if err != nil {
		s.emitError(err)
		return false, err
	}
	return ok, nil
}

// GetCommentReactions reads the reaction tally of a comment.
func (s *Store) GetCommentReactions(ctx context.Context, commentID string) (*api.Reactions, error) {
	s.mu.Lock()
	if s.adapter == nil || s.issue == nil {
		s.mu.Unlock()
		return nil, nil
	}
	adapter, token, issueID := s.adapter, s.accessToken, s.issue.ID
	s.mu.Unlock()

	reactions, err := adapter.GetCommentReactions(ctx, api.CommentReactionsParams{
		AccessToken: token,
		IssueID:     issueID,
		CommentID:   commentID,
	})
	if err != nil {
		s.emitError(err)
		return nil, err
	}
	return reactions, nil
}

// PostCommentReaction adds one reaction to a comment.
func (s *Store) PostCommentReaction(ctx context.Context, commentID string, reaction api.Reaction) (bool, error) {
	s.mu.Lock()
	if s.adapter == nil || s.issue == nil {
		s.mu.Unlock()
		return false, nil
	}
	adapter, token, issueID := s.adapter, s.accessToken, s.issue.ID
	s.mu.Unlock()

	ok, err := adapter.PostCommentReaction(ctx, api.PostCommentReactionParams{
		AccessToken: token,
		IssueID:     issueID,
		CommentID:   commentID,
		Reaction:    reaction,
	})
	if err != nil {
		s.emitError(err)
		return false, err
	}
	return ok, nil
}
