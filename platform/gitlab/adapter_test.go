package gitlab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hellausefulsoftware/vssue/api"
)

// rawPath returns the path as the client sent it, keeping the %2F in the
// project reference intact.
func rawPath(r *http.Request) string {
	if r.URL.RawPath != "" {
		return r.URL.RawPath
	}
	return r.URL.Path
}

func mockServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, api.Adapter) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := NewAdapter(api.Options{
		Owner:    "testowner",
		Repo:     "testrepo",
		ClientID: "client",
		State:    "Vssue",
		Labels:   []string{"Vssue"},
		BaseURL:  server.URL,
	})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return server, adapter
}

func TestPlatform(t *testing.T) {
	adapter, err := NewAdapter(api.Options{Owner: "a", Repo: "b"})
	if err != nil {
		t.Fatal(err)
	}

	platform := adapter.Platform()
	if platform.Name != "GitLab" || platform.Version != "v4" {
		t.Errorf("platform = %+v", platform)
	}
	if platform.Link != "https://gitlab.com" {
		t.Errorf("link = %q, want the gitlab.com default", platform.Link)
	}
}

func TestGetIssueByID(t *testing.T) {
	_, adapter := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got, want := rawPath(r), "/api/v4/projects/testowner%2Ftestrepo/issues/42"; got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 100, "iid": 42, "title": "The Thread", "description": "hello", "web_url": "https://example.com/42"}`))
	})

	issue, err := adapter.GetIssue(context.Background(), api.GetIssueParams{IssueID: "42"})
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if issue == nil || issue.ID != "42" || issue.Title != "The Thread" {
		t.Errorf("issue = %+v", issue)
	}
}

func TestGetIssueByIDNotFound(t *testing.T) {
	_, adapter := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "404 Not Found"}`))
	})

	issue, err := adapter.GetIssue(context.Background(), api.GetIssueParams{IssueID: "42"})
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if issue != nil {
		t.Errorf("issue = %+v, want nil for not found", issue)
	}
}

func TestGetIssueByTitle(t *testing.T) {
	_, adapter := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if got := query.Get("search"); got != "[Vssue]Post 1" {
			t.Errorf("search = %q", got)
		}
		if got := query.Get("labels"); got != "Vssue" {
			t.Errorf("labels = %q, want Vssue", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 101, "iid": 1, "title": "[Vssue]Post 1 extended"},
			{"id": 107, "iid": 7, "title": "[Vssue]Post 1"}
		]`))
	})

	issue, err := adapter.GetIssue(context.Background(), api.GetIssueParams{IssueTitle: "[Vssue]Post 1"})
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if issue == nil || issue.ID != "7" {
		t.Errorf("issue = %+v, want the exact title match", issue)
	}
}

func TestGetCommentsFiltersSystemNotes(t *testing.T) {
	_, adapter := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if got := query.Get("order_by"); got != "created_at" {
			t.Errorf("order_by = %q", got)
		}
		if got := query.Get("sort"); got != "asc" {
			t.Errorf("sort = %q, want asc", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Total", "25")
		w.Header().Set("X-Page", "1")
		w.Header().Set("X-Per-Page", "10")
		w.Write([]byte(`[
			{"id": 1, "body": "first", "author": {"username": "alice"}},
			{"id": 2, "body": "added label ~bug", "system": true},
			{"id": 3, "body": "second", "author": {"username": "bob"}}
		]`))
	})

	comments, err := adapter.GetComments(context.Background(), api.GetCommentsParams{
		IssueID: "42",
		Query:   api.Query{Page: 1, PerPage: 10, Sort: api.SortAsc},
	})
	if err != nil {
		t.Fatalf("GetComments: %v", err)
	}
	if comments.Count != 25 || comments.Page != 1 || comments.PerPage != 10 {
		t.Errorf("count/page/perPage = %d/%d/%d", comments.Count, comments.Page, comments.PerPage)
	}
	if len(comments.Data) != 2 {
		t.Fatalf("len(data) = %d, want the system note dropped", len(comments.Data))
	}
	if comments.Data[1].Author.Username != "bob" {
		t.Errorf("author = %q, want bob", comments.Data[1].Author.Username)
	}
}

func TestPostComment(t *testing.T) {
	_, adapter := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); !strings.Contains(got, "token-1") {
			t.Errorf("authorization = %q, want the access token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 9, "body": "hello", "author": {"username": "alice"}}`))
	})

	comment, err := adapter.PostComment(context.Background(), api.PostCommentParams{
		AccessToken: "token-1",
		IssueID:     "42",
		Content:     "hello",
	})
	if err != nil {
		t.Fatalf("PostComment: %v", err)
	}
	if comment.ID != "9" || comment.Content != "hello" {
		t.Errorf("comment = %+v", comment)
	}
}

func TestGetUser(t *testing.T) {
	_, adapter := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"username": "alice", "avatar_url": "https://example.com/a.png", "web_url": "https://example.com/alice"}`))
	})

	user, err := adapter.GetUser(context.Background(), api.GetUserParams{AccessToken: "token-1"})
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Username != "alice" || user.HomepageURL != "https://example.com/alice" {
		t.Errorf("user = %+v", user)
	}
}

func TestAuthChallengeCarriesStatus(t *testing.T) {
	_, adapter := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "401 Unauthorized"}`))
	})

	_, err := adapter.GetComments(context.Background(), api.GetCommentsParams{
		IssueID: "42",
		Query:   api.Query{Page: 1, PerPage: 10},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !api.IsAuthError(err) {
		t.Errorf("IsAuthError(%v) = false, want true", err)
	}
}

func TestHandleAuthNoCallbackData(t *testing.T) {
	adapter, err := NewAdapter(api.Options{
		Owner: "a",
		Repo:  "b",
		CurrentURL: func() (string, error) {
			return "https://example.com/post/1", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	token, err := adapter.HandleAuth(context.Background())
	if err != nil {
		t.Fatalf("HandleAuth: %v", err)
	}
	if token != "" {
		t.Errorf("token = %q, want empty without callback data", token)
	}
}
