// Package store implements the orchestration core of a comment thread
// backed by an issue on a code hosting platform. A Store owns all mutable
// session state and sequences initialization, authorization, issue
// resolution and comment operations against a pluggable platform adapter.
package store

import (
	"context"
	"slices"
	"sync"

	"github.com/hellausefulsoftware/vssue/api"
	"github.com/hellausefulsoftware/vssue/i18n"
	"github.com/hellausefulsoftware/vssue/internal/logging"
	"github.com/hellausefulsoftware/vssue/storage"
)

// Store is one comment thread session. Construct it with New, configure it
// with SetOptions and drive it with Init; all later user actions are
// discrete methods. Methods are safe for use from multiple goroutines, but
// the store holds its lock only across state mutations, never across
// adapter calls, so the status flags are the only re-entrancy guards.
type Store struct {
	mu     sync.Mutex
	opts   *Options
	tokens storage.TokenStore
	locale string

	adapter     api.Adapter
	accessToken string
	user        *api.User
	issue       *api.Issue
	comments    *api.Comments
	query       api.Query

	// gen is bumped on every initialization; a comment fetch started
	// under an older generation is not applied.
	gen uint64

	isInitializing    bool
	isIssueNotCreated bool
	isLoginRequired   bool
	isFailed          bool
	isCreatingIssue   bool
	isLoadingComments bool
	isCreatingComment bool
	isUpdatingComment bool
}

// New creates a fresh session with all fields at defaults.
func New() *Store {
	return &Store{
		query:          api.Query{Page: 1, PerPage: 10, Sort: api.SortDesc},
		isInitializing: true,
	}
}

// SetOptions merges the given configuration over the documented defaults
// and stores it. Missing required fields (api, owner, repo, clientId) are
// diagnosed with a warning but are not fatal; they surface later as
// adapter construction or request failures. No other session state is
// touched.
func (s *Store) SetOptions(opts Options) {
	opts.applyDefaults()

	required := []struct {
		name string
		ok   bool
	}{
		{"api", opts.API != nil},
		{"owner", opts.Owner != ""},
		{"repo", opts.Repo != ""},
		{"clientId", opts.ClientID != ""},
	}
	for _, r := range required {
		if !r.ok {
			logging.Warn("required option is missing", "option", r.name)
		}
	}

	languages := opts.Languages
	if len(languages) == 0 {
		languages = i18n.EnvLanguages()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = &opts
	s.tokens = opts.TokenStore
	s.locale = i18n.Resolve(opts.Locale, languages)
}

// Options returns the resolved configuration, or nil before SetOptions.
func (s *Store) Options() *Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// API returns the platform adapter of the current session, or nil.
func (s *Store) API() api.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

// Locale returns the resolved session locale.
func (s *Store) Locale() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale
}

// AccessToken returns the current bearer credential, or "".
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// User returns the authenticated user profile, or nil.
func (s *Store) User() *api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Issue returns the resolved issue, or nil.
func (s *Store) Issue() *api.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issue
}

// Comments returns the most recently fetched comment page, or nil.
func (s *Store) Comments() *api.Comments {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comments
}

// Query returns the pagination and sort parameters as confirmed by the
// most recent successful fetch.
func (s *Store) Query() api.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Status flag accessors.

func (s *Store) IsInitializing() bool    { return s.flag(&s.isInitializing) }
func (s *Store) IsIssueNotCreated() bool { return s.flag(&s.isIssueNotCreated) }
func (s *Store) IsLoginRequired() bool   { return s.flag(&s.isLoginRequired) }
func (s *Store) IsFailed() bool          { return s.flag(&s.isFailed) }
func (s *Store) IsCreatingIssue() bool   { return s.flag(&s.isCreatingIssue) }
func (s *Store) IsLoadingComments() bool { return s.flag(&s.isLoadingComments) }
func (s *Store) IsCreatingComment() bool { return s.flag(&s.isCreatingComment) }
func (s *Store) IsUpdatingComment() bool { return s.flag(&s.isUpdatingComment) }

func (s *Store) flag(f *bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *f
}

// IsLogined reports whether both a token and a user profile are present.
func (s *Store) IsLogined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLogined()
}

func (s *Store) isLogined() bool {
	return s.accessToken != "" && s.user != nil
}

// IsAdmin reports whether the authenticated user is the owner or listed
// in the admins option.
func (s *Store) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAdmin()
}

func (s *Store) isAdmin() bool {
	return s.opts != nil && s.isLogined() &&
		(s.user.Username == s.opts.Owner || slices.Contains(s.opts.Admins, s.user.Username))
}

// IsPending reports whether any comment operation is in flight.
func (s *Store) IsPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoadingComments || s.isCreatingComment || s.isUpdatingComment
}

// IssueTitle computes the title of the backing issue from the options.
func (s *Store) IssueTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts == nil {
		return ""
	}
	if s.opts.TitleFn != nil {
		return s.opts.TitleFn(s.opts)
	}
	return s.opts.Prefix + s.opts.Title
}

// Login initiates the platform authorization redirect. No-op without an
// adapter.
func (s *Store) Login() {
	adapter := s.API()
	if adapter == nil {
		return
	}
	if err := adapter.RedirectAuth(); err != nil {
		logging.Error("authorization redirect failed", "error", err)
	}
}

// Logout clears the access token, evicting it from the token store, and
// drops the cached user.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAccessToken("")
	s.user = nil
}

// HandleAuth completes a pending authorization round-trip: a new token
// carried by the navigation context is persisted and the user profile
// fetched; otherwise a token already in the store is reused; otherwise
// the session is left unauthenticated.
func (s *Store) HandleAuth(ctx context.Context) error {
	adapter := s.API()
	if adapter == nil {
		return nil
	}

	token, err := adapter.HandleAuth(ctx)
	if err != nil {
		return err
	}

	if token != "" {
		s.mu.Lock()
		s.setAccessToken(token)
		s.mu.Unlock()

		user, err := adapter.GetUser(ctx, api.GetUserParams{AccessToken: token})
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.user = user
		s.mu.Unlock()
		return nil
	}

	if stored := s.loadAccessToken(); stored != "" {
		user, err := adapter.GetUser(ctx, api.GetUserParams{AccessToken: stored})
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.user = user
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.setAccessToken("")
	s.user = nil
	s.mu.Unlock()
	return nil
}

// accessTokenKey namespaces the token store entry per platform so several
// integrations on one host do not collide.
func (s *Store) accessTokenKey() string {
	if s.adapter == nil {
		return ""
	}
	return storage.TokenKey(s.adapter.Platform().Name)
}

// loadAccessToken reads the persisted token into the session.
func (s *Store) loadAccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.accessTokenKey()
	if key == "" || s.tokens == nil {
		return ""
	}
	token, _ := s.tokens.Get(key)
	s.accessToken = token
	return token
}

// setAccessToken mutates the session token and writes through to the
// token store. Callers hold s.mu.
func (s *Store) setAccessToken(token string) {
	s.accessToken = token

	key := s.accessTokenKey()
	if key == "" || s.tokens == nil {
		return
	}
	var err error
	if token == "" {
		err = s.tokens.Delete(key)
	} else {
		err = s.tokens.Set(key, token)
	}
	if err != nil {
		logging.Warn("failed to persist access token", "key", key, "error", err)
	}
}

func (s *Store) emitError(err error) {
	s.mu.Lock()
	var onError func(error)
	if s.opts != nil {
		onError = s.opts.OnError
	}
	s.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}
