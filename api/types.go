// Package api defines the platform-agnostic contract between the comment
// store and the hosting-platform adapters (GitHub, GitLab, etc.)
package api

import (
	"time"
)

// User is the profile of an authenticated platform account.
type User struct {
	Username    string
	AvatarURL   string
	HomepageURL string
}

// Issue is the tracked item backing a comment thread.
type Issue struct {
	ID      string
	Title   string
	Content string
	Link    string
}

// Comment is a single comment on an issue.
type Comment struct {
	ID        string
	Content   string
	Author    User
	CreatedAt time.Time
	UpdatedAt time.Time
	Reactions *Reactions
}

// Comments is one page of a comment listing. Page and PerPage are the
// values the platform actually applied, which may differ from the ones
// requested (platforms clamp page sizes).
type Comments struct {
	Count   int
	Page    int
	PerPage int
	Data    []*Comment
}

// Reactions is the tally of reactions on a comment.
type Reactions struct {
	Like   int
	Unlike int
	Heart  int
}

// Reaction identifies a single reaction kind.
type Reaction string

const (
	ReactionLike   Reaction = "like"
	ReactionUnlike Reaction = "unlike"
	ReactionHeart  Reaction = "heart"
)

// Sort directions for comment listings.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Query holds the pagination and sort parameters of a comment listing.
type Query struct {
	Page    int
	PerPage int
	Sort    string
}

// PlatformMeta describes optional platform capabilities.
type PlatformMeta struct {
	Reactable bool
	Sortable  bool
}

// Platform identifies a hosting platform and its capabilities.
type Platform struct {
	Name    string
	Link    string
	Version string
	Meta    PlatformMeta
}
