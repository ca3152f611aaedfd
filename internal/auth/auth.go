// Package auth implements the interactive login flows for the CLI: a
// personal access token wizard and a browser-based OAuth flow that
// captures the authorization callback on a loopback listener.
package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/hellausefulsoftware/vssue/api"
	"github.com/hellausefulsoftware/vssue/storage"
)

// Session is the outcome of a successful login.
type Session struct {
	Platform string
	Username string
	Token    string
}

// SetupToken guides the user through entering a personal access token,
// validates it against the platform and persists it.
func SetupToken(ctx context.Context, adapter api.Adapter, tokens storage.TokenStore, in io.Reader, out io.Writer) (*Session, error) {
	platform := adapter.Platform()
	reader := bufio.NewReader(in)

	fmt.Fprintf(out, "Enter a %s personal access token:\n", platform.Name)
	token, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("error reading token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("no token entered")
	}

	user, err := adapter.GetUser(ctx, api.GetUserParams{AccessToken: token})
	if err != nil {
		return nil, fmt.Errorf("invalid %s token: %w", platform.Name, err)
	}

	if err := tokens.Set(storage.TokenKey(platform.Name), token); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	fmt.Fprintf(out, "Authenticated as %s\n", user.Username)
	return &Session{
		Platform: platform.Name,
		Username: user.Username,
		Token:    token,
	}, nil
}

// CallbackServer is a loopback HTTP listener that receives the OAuth
// authorization redirect. Its RedirectURL and CurrentURL methods plug
// directly into the adapter's navigation hooks.
type CallbackServer struct {
	listener net.Listener
	server   *http.Server

	mu       sync.Mutex
	captured string
	done     chan struct{}
}

// StartCallback begins listening on addr ("127.0.0.1:0" picks a free
// port).
func StartCallback(addr string) (*CallbackServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for the OAuth callback: %w", err)
	}

	c := &CallbackServer{
		listener: listener,
		done:     make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		first := c.captured == ""
		if first {
			c.captured = c.RedirectURL() + "?" + r.URL.RawQuery
		}
		c.mu.Unlock()

		fmt.Fprintln(w, "Authorized. You can close this tab and return to the terminal.")
		if first {
			close(c.done)
		}
	})

	c.server = &http.Server{Handler: mux}
	go func() {
		_ = c.server.Serve(listener)
	}()

	return c, nil
}

// RedirectURL is the address the platform should redirect back to.
func (c *CallbackServer) RedirectURL() string {
	return "http://" + c.listener.Addr().String() + "/callback"
}

// CurrentURL reports the captured callback URL once the redirect has
// arrived, and the plain redirect URL before that. This matches what the
// adapter expects from its navigation context.
func (c *CallbackServer) CurrentURL() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.captured != "" {
		return c.captured, nil
	}
	return c.RedirectURL(), nil
}

// Wait blocks until the callback arrives or ctx expires.
func (c *CallbackServer) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for the OAuth callback: %w", ctx.Err())
	}
}

// Close shuts the listener down.
func (c *CallbackServer) Close() error {
	return c.server.Close()
}

// OpenBrowser opens url in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
