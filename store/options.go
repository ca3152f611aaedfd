package store

import (
	"context"
	"net/url"
	"strings"

	"github.com/hellausefulsoftware/vssue/api"
	"github.com/hellausefulsoftware/vssue/storage"
)

// IssueContentParams is passed to the issue content formatter when a new
// issue is created for a page.
type IssueContentParams struct {
	Options *Options
	URL     string
}

// IssueContentFunc produces the body of an auto-created issue. It may
// perform its own I/O (e.g. fetch the page title), hence the context.
type IssueContentFunc func(ctx context.Context, params IssueContentParams) (string, error)

// Options is the resolved configuration of one comment thread session.
// Zero-valued fields are filled with documented defaults by SetOptions.
type Options struct {
	// API constructs the platform adapter. Required.
	API api.Constructor

	// Platform application coordinates. Owner, Repo and ClientID are
	// required; their absence is diagnosed but not fatal, and surfaces
	// later as adapter construction or request failures.
	Owner        string
	Repo         string
	ClientID     string
	ClientSecret string
	BaseURL      string

	// State is the OAuth state string sent on authorization redirects.
	State string

	// Labels select the issues managed by this integration.
	Labels []string

	// Prefix is prepended to Title to compute the issue title.
	Prefix string

	// Title is the static issue title, unless TitleFn is set. Defaults
	// to "Vssue".
	Title string

	// TitleFn computes the issue title from the options.
	TitleFn func(opts *Options) string

	// IssueID pins the session to a specific issue instead of resolving
	// one by title.
	IssueID string

	// URL is the canonical page URL backing this thread, handed to the
	// issue content formatter with query and fragment stripped.
	URL string

	// Admins are accounts allowed to create the issue besides Owner.
	Admins []string

	// PerPage is the initial page size for comment listings.
	PerPage int

	// Locale forces the session locale; when empty the Languages
	// preference list (or the environment) is matched against the
	// supported locales.
	Locale    string
	Languages []string

	// Proxy rewrites request URLs, e.g. through a CORS relay.
	Proxy api.Proxy

	// IssueContent formats the body of an auto-created issue.
	IssueContent IssueContentFunc

	// AutoCreateIssue creates the issue on initialization when the title
	// lookup finds none.
	AutoCreateIssue bool

	// TokenStore persists access tokens across sessions. Defaults to an
	// in-memory store.
	TokenStore storage.TokenStore

	// OnError is invoked with failures of comment and reaction actions
	// before they are returned to the caller.
	OnError func(err error)

	// Navigate and CurrentURL are the navigation hooks handed to the
	// adapter for the authorization round-trip.
	Navigate   func(url string) error
	CurrentURL func() (string, error)
}

func (o *Options) applyDefaults() {
	if o.Labels == nil {
		o.Labels = []string{"Vssue"}
	}
	if o.State == "" {
		o.State = "Vssue"
	}
	if o.Prefix == "" {
		o.Prefix = "[Vssue]"
	}
	if o.Title == "" {
		o.Title = "Vssue"
	}
	if o.Admins == nil {
		o.Admins = []string{}
	}
	if o.PerPage <= 0 {
		o.PerPage = 10
	}
	if o.Proxy == nil {
		o.Proxy = api.IdentityProxy
	}
	if o.IssueContent == nil {
		o.IssueContent = defaultIssueContent
	}
	if o.TokenStore == nil {
		o.TokenStore = storage.NewMemoryStore()
	}
}

func defaultIssueContent(_ context.Context, params IssueContentParams) (string, error) {
	return params.URL, nil
}

// cleanURL strips the query and fragment from a page URL so issue content
// does not embed volatile request noise.
func cleanURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		// best effort on unparseable input
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
