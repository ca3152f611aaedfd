package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hellausefulsoftware/vssue/api"
	"github.com/hellausefulsoftware/vssue/store"
)

type pollAdapter struct {
	mu       sync.Mutex
	comments []*api.Comment
}

func (a *pollAdapter) add(id, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.comments = append(a.comments, &api.Comment{ID: id, Content: content})
}

func (a *pollAdapter) Platform() api.Platform {
	return api.Platform{Name: "Poll"}
}

func (a *pollAdapter) GetIssue(ctx context.Context, params api.GetIssueParams) (*api.Issue, error) {
	return &api.Issue{ID: "1", Title: "thread"}, nil
}

func (a *pollAdapter) PostIssue(ctx context.Context, params api.PostIssueParams) (*api.Issue, error) {
	return nil, nil
}

func (a *pollAdapter) GetComments(ctx context.Context, params api.GetCommentsParams) (*api.Comments, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data := make([]*api.Comment, len(a.comments))
	copy(data, a.comments)
	return &api.Comments{
		Count:   len(data),
		Page:    params.Query.Page,
		PerPage: params.Query.PerPage,
		Data:    data,
	}, nil
}

func (a *pollAdapter) PostComment(ctx context.Context, params api.PostCommentParams) (*api.Comment, error) {
	return nil, nil
}

func (a *pollAdapter) PutComment(ctx context.Context, params api.PutCommentParams) (*api.Comment, error) {
	return nil, nil
}

func (a *pollAdapter) DeleteComment(ctx context.Context, params api.DeleteCommentParams) (bool, error) {
	return false, nil
}

func (a *pollAdapter) GetCommentReactions(ctx context.Context, params api.CommentReactionsParams) (*api.Reactions, error) {
	return nil, nil
}

func (a *pollAdapter) PostCommentReaction(ctx context.Context, params api.PostCommentReactionParams) (bool, error) {
	return false, nil
}

func (a *pollAdapter) GetUser(ctx context.Context, params api.GetUserParams) (*api.User, error) {
	return nil, nil
}

func (a *pollAdapter) RedirectAuth() error { return nil }

func (a *pollAdapter) HandleAuth(ctx context.Context) (string, error) { return "", nil }

func newThread(t *testing.T, adapter *pollAdapter) *store.Store {
	t.Helper()
	s := store.New()
	s.SetOptions(store.Options{
		API: func(opts api.Options) (api.Adapter, error) {
			return adapter, nil
		},
		Owner:    "a",
		Repo:     "b",
		ClientID: "c",
		IssueID:  "1",
	})
	s.Init(context.Background())
	if s.Issue() == nil {
		t.Fatal("thread failed to initialize")
	}
	return s
}

func TestWatcherReportsOnlyNewComments(t *testing.T) {
	adapter := &pollAdapter{}
	adapter.add("1", "existing")

	s := newThread(t, adapter)
	if got := len(s.Comments().Data); got != 1 {
		t.Fatalf("len(comments) = %d, want 1", got)
	}

	var mu sync.Mutex
	var news []string
	w := New(s, 10*time.Millisecond, func(c *api.Comment) {
		mu.Lock()
		news = append(news, c.ID)
		mu.Unlock()
	})

	adapter.add("2", "fresh")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(news)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the new comment")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	for _, id := range news {
		if id == "1" {
			t.Error("the pre-existing comment must not be reported")
		}
	}
	if news[0] != "2" {
		t.Errorf("news[0] = %q, want 2", news[0])
	}
}

func TestWatcherDeduplicates(t *testing.T) {
	adapter := &pollAdapter{}
	s := newThread(t, adapter)

	count := 0
	w := New(s, time.Hour, func(c *api.Comment) { count++ })

	adapter.add("1", "fresh")
	if err := w.poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("callback ran %d times, want once", count)
	}
}
