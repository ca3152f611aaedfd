package api

import (
	"context"
)

// Proxy rewrites a request URL, typically to route it through a CORS relay
// or self-hosted gateway. The identity function disables rewriting.
type Proxy func(url string) string

// IdentityProxy returns the URL unchanged.
func IdentityProxy(url string) string { return url }

// FixedProxy prefixes every URL with the given relay endpoint.
func FixedProxy(relay string) Proxy {
	return func(url string) string { return relay + url }
}

// Options configures an adapter. One adapter is constructed per session.
type Options struct {
	BaseURL      string
	Owner        string
	Repo         string
	ClientID     string
	ClientSecret string
	State        string
	Labels       []string
	Proxy        Proxy

	// Navigate performs the consent-screen redirect. In a browser host this
	// is a page navigation; a CLI host may open the system browser.
	Navigate func(url string) error

	// CurrentURL reports the URL of the current navigation context, which
	// HandleAuth inspects for an authorization callback.
	CurrentURL func() (string, error)
}

// Constructor builds an adapter from options. The store invokes it once
// per initialization.
type Constructor func(opts Options) (Adapter, error)

// GetIssueParams selects an issue either by id or by exact title.
type GetIssueParams struct {
	AccessToken string
	IssueID     string
	IssueTitle  string
}

// PostIssueParams carries the fields of a new issue.
type PostIssueParams struct {
	AccessToken string
	Title       string
	Content     string
}

// GetCommentsParams requests one page of comments on an issue.
type GetCommentsParams struct {
	AccessToken string
	IssueID     string
	Query       Query
}

// PostCommentParams creates a comment on an issue.
type PostCommentParams struct {
	AccessToken string
	IssueID     string
	Content     string
}

// PutCommentParams edits an existing comment.
type PutCommentParams struct {
	AccessToken string
	IssueID     string
	CommentID   string
	Content     string
}

// DeleteCommentParams removes an existing comment.
type DeleteCommentParams struct {
	AccessToken string
	IssueID     string
	CommentID   string
}

// CommentReactionsParams identifies the comment whose reactions are read.
type CommentReactionsParams struct {
	AccessToken string
	IssueID     string
	CommentID   string
}

// PostCommentReactionParams adds one reaction to a comment.
type PostCommentReactionParams struct {
	AccessToken string
	IssueID     string
	CommentID   string
	Reaction    Reaction
}

// GetUserParams identifies the account to look up.
type GetUserParams struct {
	AccessToken string
}

// Adapter is the capability set every platform integration provides. All
// implementations are interchangeable behind this interface; the store
// never depends on a concrete platform.
//
// GetIssue returns (nil, nil) when no issue matches.
type Adapter interface {
	Platform() Platform

	GetIssue(ctx context.Context, params GetIssueParams) (*Issue, error)
	PostIssue(ctx context.Context, params PostIssueParams) (*Issue, error)

	GetComments(ctx context.Context, params GetCommentsParams) (*Comments, error)
	PostComment(ctx context.Context, params PostCommentParams) (*Comment, error)
	PutComment(ctx context.Context, params PutCommentParams) (*Comment, error)
	DeleteComment(ctx context.Context, params DeleteCommentParams) (bool, error)

	GetCommentReactions(ctx context.Context, params CommentReactionsParams) (*Reactions, error)
	PostCommentReaction(ctx context.Context, params PostCommentReactionParams) (bool, error)

	GetUser(ctx context.Context, params GetUserParams) (*User, error)

	// RedirectAuth initiates the platform authorization flow, typically by
	// navigating to the consent screen.
	RedirectAuth() error

	// HandleAuth inspects the current navigation context for authorization
	// completion data and returns the new access token, or "" when the
	// context carries none.
	HandleAuth(ctx context.Context) (string, error)
}
