package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hellausefulsoftware/vssue/api"
	"github.com/hellausefulsoftware/vssue/storage"
)

type stubAdapter struct {
	user    *api.User
	userErr error
}

func (a *stubAdapter) Platform() api.Platform {
	return api.Platform{Name: "Stub"}
}

func (a *stubAdapter) GetUser(ctx context.Context, params api.GetUserParams) (*api.User, error) {
	if a.userErr != nil {
		return nil, a.userErr
	}
	return a.user, nil
}

func (a *stubAdapter) GetIssue(ctx context.Context, params api.GetIssueParams) (*api.Issue, error) {
	return nil, nil
}

func (a *stubAdapter) PostIssue(ctx context.Context, params api.PostIssueParams) (*api.Issue, error) {
	return nil, nil
}

func (a *stubAdapter) GetComments(ctx context.Context, params api.GetCommentsParams) (*api.Comments, error) {
	return nil, nil
}

func (a *stubAdapter) PostComment(ctx context.Context, params api.PostCommentParams) (*api.Comment, error) {
	return nil, nil
}

func (a *stubAdapter) PutComment(ctx context.Context, params api.PutCommentParams) (*api.Comment, error) {
	return nil, nil
}

func (a *stubAdapter) DeleteComment(ctx context.Context, params api.DeleteCommentParams) (bool, error) {
	return false, nil
}

func (a *stubAdapter) GetCommentReactions(ctx context.Context, params api.CommentReactionsParams) (*api.Reactions, error) {
	return nil, nil
}

func (a *stubAdapter) PostCommentReaction(ctx context.Context, params api.PostCommentReactionParams) (bool, error) {
	return false, nil
}

func (a *stubAdapter) RedirectAuth() error { return nil }

func (a *stubAdapter) HandleAuth(ctx context.Context) (string, error) { return "", nil }

func TestSetupTokenPersistsValidToken(t *testing.T) {
	adapter := &stubAdapter{user: &api.User{Username: "alice"}}
	tokens := storage.NewMemoryStore()

	var out strings.Builder
	session, err := SetupToken(context.Background(), adapter, tokens,
		strings.NewReader("token-1\n"), &out)
	if err != nil {
		t.Fatalf("SetupToken: %v", err)
	}
	if session.Username != "alice" || session.Token != "token-1" {
		t.Errorf("session = %+v", session)
	}

	stored, ok := tokens.Get(storage.TokenKey("Stub"))
	if !ok || stored != "token-1" {
		t.Errorf("stored token = %q, %v", stored, ok)
	}
	if !strings.Contains(out.String(), "alice") {
		t.Errorf("output %q should confirm the username", out.String())
	}
}

func TestSetupTokenRejectsInvalidToken(t *testing.T) {
	adapter := &stubAdapter{userErr: errors.New("bad credentials")}
	tokens := storage.NewMemoryStore()

	var out strings.Builder
	_, err := SetupToken(context.Background(), adapter, tokens,
		strings.NewReader("token-1\n"), &out)
	if err == nil {
		t.Fatal("expected an error for a rejected token")
	}
	if _, ok := tokens.Get(storage.TokenKey("Stub")); ok {
		t.Error("a rejected token must not be persisted")
	}
}

func TestSetupTokenEmptyInput(t *testing.T) {
	adapter := &stubAdapter{user: &api.User{Username: "alice"}}

	var out strings.Builder
	_, err := SetupToken(context.Background(), adapter, storage.NewMemoryStore(),
		strings.NewReader("\n"), &out)
	if err == nil {
		t.Fatal("expected an error for empty input")
	}
}

func TestCallbackServerCapturesRedirect(t *testing.T) {
	cb, err := StartCallback("127.0.0.1:0")
	if err != nil {
		t.Fatalf("StartCallback: %v", err)
	}
	defer cb.Close()

	before, err := cb.CurrentURL()
	if err != nil {
		t.Fatal(err)
	}
	if before != cb.RedirectURL() {
		t.Errorf("before the callback CurrentURL = %q, want %q", before, cb.RedirectURL())
	}

	resp, err := http.Get(cb.RedirectURL() + "?code=abc&state=Vssue")
	if err != nil {
		t.Fatalf("callback request: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cb.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	after, err := cb.CurrentURL()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(after, "code=abc") {
		t.Errorf("captured URL %q is missing the authorization code", after)
	}
}

func TestCallbackServerWaitHonorsContext(t *testing.T) {
	cb, err := StartCallback("127.0.0.1:0")
	if err != nil {
		t.Fatalf("StartCallback: %v", err)
	}
	defer cb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := cb.Wait(ctx); err == nil {
		t.Error("expected a context error when no callback arrives")
	}
}
