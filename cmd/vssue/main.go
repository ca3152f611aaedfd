package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hellausefulsoftware/vssue/api"
	"github.com/hellausefulsoftware/vssue/internal/auth"
	"github.com/hellausefulsoftware/vssue/internal/config"
	"github.com/hellausefulsoftware/vssue/internal/logging"
	"github.com/hellausefulsoftware/vssue/internal/tui"
	"github.com/hellausefulsoftware/vssue/internal/watch"
	"github.com/hellausefulsoftware/vssue/platform/github"
	"github.com/hellausefulsoftware/vssue/platform/gitlab"
	"github.com/hellausefulsoftware/vssue/storage"
	"github.com/hellausefulsoftware/vssue/store"
)

func main() {
	logging.Initialize(nil)

	var (
		configPath string
		logLevel   string
		logJSON    bool

		platform string
		owner    string
		repo     string
		issueID  string
		title    string
		token    string
	)

	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "vssue",
		Short: "Browse and manage issue-backed comment threads",
		Long:  `A CLI for comment threads backed by issues on GitHub or GitLab: view a thread, post and edit comments, and react to them.`,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Set logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&platform, "platform", "", "Platform: github or gitlab")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "", "Repository owner")
	rootCmd.PersistentFlags().StringVar(&repo, "repo", "", "Repository name")
	rootCmd.PersistentFlags().StringVar(&issueID, "issue-id", "", "Pin the thread to a specific issue id")
	rootCmd.PersistentFlags().StringVar(&title, "title", "", "Resolve the thread by issue title")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Personal access token")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		// flags override file and environment
		if platform != "" {
			cfg.Platform = platform
		}
		if owner != "" {
			cfg.Owner = owner
		}
		if repo != "" {
			cfg.Repo = repo
		}
		if issueID != "" {
			cfg.IssueID = issueID
		}
		if title != "" {
			cfg.Title = title
		}
		if token != "" {
			cfg.Token = token
		}
		if logLevel != "info" {
			cfg.Logging.Level = logLevel
		}
		if logJSON {
			cfg.Logging.JSON = true
		}

		logging.Initialize(&logging.Config{
			Level:      logging.LogLevel(cfg.Logging.Level),
			Output:     os.Stderr,
			JSONFormat: cfg.Logging.JSON,
		})
		return nil
	}

	var (
		useTUI        bool
		watchThread   bool
		watchInterval time.Duration
	)
	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "View the comment thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStore(cfg)
			if err != nil {
				return err
			}

			if useTUI {
				_, err := tea.NewProgram(tui.New(s), tea.WithAltScreen()).Run()
				return err
			}

			s.Init(cmd.Context())
			if err := checkSession(s); err != nil {
				return err
			}
			printThread(s)

			if !watchThread {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			fmt.Println("watching for new comments, press Ctrl+C to stop")
			w := watch.New(s, watchInterval, func(c *api.Comment) {
				fmt.Printf("--- %s at %s (id %s)\n", c.Author.Username,
					c.CreatedAt.Format("2006-01-02 15:04"), c.ID)
				fmt.Println(c.Content)
				fmt.Println()
			})
			if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	viewCmd.Flags().BoolVar(&useTUI, "tui", false, "Browse the thread interactively")
	viewCmd.Flags().BoolVar(&watchThread, "watch", false, "Keep polling the thread for new comments")
	viewCmd.Flags().DurationVar(&watchInterval, "interval", watch.DefaultInterval, "Poll interval for --watch")

	commentCmd := &cobra.Command{
		Use:   "comment <content>",
		Short: "Post a comment on the thread",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := initSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			comment, err := s.PostComment(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if comment == nil {
				return errors.New("comment was not created")
			}
			fmt.Printf("posted comment %s\n", comment.ID)
			return nil
		},
	}

	editCmd := &cobra.Command{
		Use:   "edit <comment-id> <content>",
		Short: "Edit a comment",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := initSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			comment, err := s.PutComment(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if comment == nil {
				return errors.New("comment was not updated")
			}
			fmt.Printf("updated comment %s\n", comment.ID)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := initSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			ok, err := s.DeleteComment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("comment was not deleted")
			}
			fmt.Printf("deleted comment %s\n", args[0])
			return nil
		},
	}

	reactCmd := &cobra.Command{
		Use:   "react <comment-id> <like|unlike|heart>",
		Short: "React to a comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := initSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			ok, err := s.PostCommentReaction(cmd.Context(), args[0], api.Reaction(args[1]))
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("reaction was not recorded")
			}
			fmt.Println("reaction recorded")
			return nil
		},
	}

	reactionsCmd := &cobra.Command{
		Use:   "reactions <comment-id>",
		Short: "Show the reaction tally of a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := initSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			reactions, err := s.GetCommentReactions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if reactions == nil {
				return errors.New("no reactions available")
			}
			fmt.Printf("+1 %d  -1 %d  heart %d\n", reactions.Like, reactions.Unlike, reactions.Heart)
			return nil
		},
	}

	var useBrowser bool
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the platform and persist the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens := tokenStore()

			if !useBrowser {
				adapter, err := adapterFor(cfg, nil, nil)
				if err != nil {
					return err
				}
				_, err = auth.SetupToken(cmd.Context(), adapter, tokens, os.Stdin, os.Stdout)
				return err
			}

			cb, err := auth.StartCallback("127.0.0.1:0")
			if err != nil {
				return err
			}
			defer cb.Close()

			adapter, err := adapterFor(cfg, auth.OpenBrowser, cb.CurrentURL)
			if err != nil {
				return err
			}
			if err := adapter.RedirectAuth(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			if err := cb.Wait(ctx); err != nil {
				return err
			}

			token, err := adapter.HandleAuth(ctx)
			if err != nil {
				return err
			}
			if token == "" {
				return errors.New("the platform did not return an access token")
			}

			user, err := adapter.GetUser(ctx, api.GetUserParams{AccessToken: token})
			if err != nil {
				return err
			}
			if err := tokens.Set(storage.TokenKey(adapter.Platform().Name), token); err != nil {
				return fmt.Errorf("failed to persist token: %w", err)
			}
			fmt.Printf("authenticated as %s\n", user.Username)
			return nil
		},
	}
	loginCmd.Flags().BoolVar(&useBrowser, "browser", false, "Authorize through the browser instead of entering a token")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Platform == "" {
				return errors.New("platform is required")
			}
			return tokenStore().Delete(storage.TokenKey(cfg.Platform))
		},
	}

	rootCmd.AddCommand(viewCmd, commentCmd, editCmd, deleteCmd, reactCmd, reactionsCmd, loginCmd, logoutCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// tokenStore prefers the per-user file store, falling back to memory
// when the config directory cannot be resolved.
func tokenStore() storage.TokenStore {
	fs, err := storage.DefaultFileStore()
	if err != nil {
		logging.Warn("falling back to in-memory token store", "error", err)
		return storage.NewMemoryStore()
	}
	return fs
}

// adapterFor constructs a bare platform adapter outside of a session,
// used by the login flow.
func adapterFor(cfg *config.Config, navigate func(string) error, currentURL func() (string, error)) (api.Adapter, error) {
	opts := api.Options{
		BaseURL:      cfg.BaseURL,
		Owner:        cfg.Owner,
		Repo:         cfg.Repo,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		State:        "Vssue",
		Labels:       cfg.Labels,
		Navigate:     navigate,
		CurrentURL:   currentURL,
	}
	switch cfg.Platform {
	case "github":
		return github.NewAdapter(opts)
	case "gitlab":
		return gitlab.NewAdapter(opts)
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
}

// buildStore assembles a configured session store for the CLI.
func buildStore(cfg *config.Config) (*store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var constructor api.Constructor
	switch cfg.Platform {
	case "github":
		constructor = github.NewAdapter
	case "gitlab":
		constructor = gitlab.NewAdapter
	}

	tokens := tokenStore()

	// a personal access token skips the OAuth round-trip entirely
	if cfg.Token != "" {
		if err := tokens.Set(storage.TokenKey(cfg.Platform), cfg.Token); err != nil {
			return nil, fmt.Errorf("failed to store access token: %w", err)
		}
	}

	s := store.New()
	s.SetOptions(store.Options{
		API:             constructor,
		Owner:           cfg.Owner,
		Repo:            cfg.Repo,
		ClientID:        cfg.ClientID,
		ClientSecret:    cfg.ClientSecret,
		BaseURL:         cfg.BaseURL,
		Labels:          cfg.Labels,
		Prefix:          cfg.Prefix,
		Admins:          cfg.Admins,
		PerPage:         cfg.PerPage,
		Locale:          cfg.Locale,
		Title:           cfg.Title,
		IssueID:         cfg.IssueID,
		URL:             cfg.URL,
		AutoCreateIssue: cfg.AutoCreateIssue,
		TokenStore:      tokens,
	})
	return s, nil
}

// initSession builds the store and runs initialization, failing fast on
// sessions the subcommand cannot operate on.
func initSession(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	s, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	s.Init(ctx)
	if err := checkSession(s); err != nil {
		return nil, err
	}
	if s.Issue() == nil {
		return nil, errors.New("no issue exists for this thread yet")
	}
	return s, nil
}

func checkSession(s *store.Store) error {
	switch {
	case s.IsFailed():
		return errors.New("failed to initialize the comment thread")
	case s.IsLoginRequired():
		return errors.New("the platform requires authentication; provide a token")
	}
	return nil
}

func printThread(s *store.Store) {
	issue := s.Issue()
	if issue == nil {
		fmt.Println("no issue exists for this thread yet")
		return
	}

	fmt.Printf("%s (#%s)\n", issue.Title, issue.ID)
	if issue.Link != "" {
		fmt.Println(issue.Link)
	}
	fmt.Println()

	comments := s.Comments()
	if comments == nil || len(comments.Data) == 0 {
		fmt.Println("no comments yet")
		return
	}

	for _, comment := range comments.Data {
		fmt.Printf("--- %s at %s (id %s)\n", comment.Author.Username,
			comment.CreatedAt.Format("2006-01-02 15:04"), comment.ID)
		fmt.Println(comment.Content)
		fmt.Println()
	}

	query := s.Query()
	fmt.Printf("page %d of %d comments (%d per page, %s)\n",
		query.Page, comments.Count, query.PerPage, query.Sort)
}
