// Package tui renders a comment thread in the terminal, binding to the
// session store's state and invoking its actions in response to input.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hellausefulsoftware/vssue/api"
	"github.com/hellausefulsoftware/vssue/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	authorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75"))

	dimStyle  = lipgloss.NewStyle().Faint(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(1)

	commentStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			PaddingLeft(1).
			MarginBottom(1)
)

type initDoneMsg struct{}

type commentsMsg struct {
	err error
}

type postedMsg struct {
	err error
}

// Model is the bubbletea model of the thread viewer.
type Model struct {
	store *store.Store

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	composing bool
	loading   bool
	ready     bool
	width     int
	height    int
	err       error
}

// New creates a thread viewer bound to the given session store. The store
// must be configured; Init drives its initialization.
func New(s *store.Store) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ta := textarea.New()
	ta.Placeholder = "Leave a comment..."
	ta.ShowLineNumbers = false

	return Model{
		store:    s,
		spinner:  sp,
		textarea: ta,
		loading:  true,
	}
}

// Init starts session initialization.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, initCmd(m.store))
}

func initCmd(s *store.Store) tea.Cmd {
	return func() tea.Msg {
		s.Init(context.Background())
		return initDoneMsg{}
	}
}

func reloadCmd(s *store.Store) tea.Cmd {
	return func() tea.Msg {
		_, err := s.GetComments(context.Background())
		return commentsMsg{err: err}
	}
}

func setPageCmd(s *store.Store, page int) tea.Cmd {
	return func() tea.Msg {
		_, err := s.SetPage(context.Background(), page)
		return commentsMsg{err: err}
	}
}

func setSortCmd(s *store.Store, sort string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.SetSort(context.Background(), sort)
		return commentsMsg{err: err}
	}
}

func postCommentCmd(s *store.Store, content string) tea.Cmd {
	return func() tea.Msg {
		if _, err := s.PostComment(context.Background(), content); err != nil {
			return postedMsg{err: err}
		}
		_, err := s.GetComments(context.Background())
		return postedMsg{err: err}
	}
}

// Update handles input and store completion messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chrome := 6 // header, status and help lines
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chrome)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chrome
		}
		m.textarea.SetWidth(msg.Width - 4)
		m.viewport.SetContent(m.renderThread())
		return m, nil

	case initDoneMsg, commentsMsg, postedMsg:
		m.loading = false
		if cm, ok := msg.(commentsMsg); ok {
			m.err = cm.err
		}
		if pm, ok := msg.(postedMsg); ok {
			m.err = pm.err
			if pm.err == nil {
				m.composing = false
				m.textarea.Reset()
			}
		}
		if m.ready {
			m.viewport.SetContent(m.renderThread())
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.composing {
			return m.updateComposing(msg)
		}
		return m.updateBrowsing(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "n":
		query := m.store.Query()
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, setPageCmd(m.store, query.Page+1))

	case "p":
		query := m.store.Query()
		if query.Page <= 1 {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, setPageCmd(m.store, query.Page-1))

	case "o":
		sort := api.SortAsc
		if m.store.Query().Sort == api.SortAsc {
			sort = api.SortDesc
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, setSortCmd(m.store, sort))

	case "R":
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, reloadCmd(m.store))

	case "c":
		if m.store.Issue() == nil {
			return m, nil
		}
		m.composing = true
		m.textarea.Focus()
		return m, textarea.Blink
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateComposing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.composing = false
		m.textarea.Blur()
		return m, nil

	case "ctrl+s":
		content := strings.TrimSpace(m.textarea.Value())
		if content == "" {
			return m, nil
		}
		m.loading = true
		m.textarea.Blur()
		return m, tea.Batch(m.spinner.Tick, postCommentCmd(m.store, content))
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// View renders the thread, the composer and the status line.
func (m Model) View() string {
	if !m.ready {
		return m.spinner.View() + " loading..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")

	if m.composing {
		b.WriteString(m.textarea.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("ctrl+s send · esc cancel"))
		return b.String()
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusView())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("n/p page · o sort · c comment · R reload · q quit"))
	return b.String()
}

func (m Model) headerView() string {
	title := m.store.IssueTitle()
	if issue := m.store.Issue(); issue != nil {
		title = issue.Title
	}
	platform := ""
	if adapter := m.store.API(); adapter != nil {
		platform = dimStyle.Render(" · " + adapter.Platform().Name)
	}
	return titleStyle.Render(title) + platform
}

func (m Model) statusView() string {
	switch {
	case m.loading || m.store.IsPending():
		return m.spinner.View() + dimStyle.Render(" working...")
	case m.err != nil:
		return errStyle.Render(fmt.Sprintf("error: %v", m.err))
	case m.store.IsFailed():
		return errStyle.Render("failed to load the comment thread")
	case m.store.IsLoginRequired():
		return warnStyle.Render("login required to view this thread")
	case m.store.IsIssueNotCreated():
		return warnStyle.Render("no issue exists for this page yet")
	}

	query := m.store.Query()
	total := 0
	if comments := m.store.Comments(); comments != nil {
		total = comments.Count
	}
	return dimStyle.Render(fmt.Sprintf("page %d · %d per page · %s · %d comments",
		query.Page, query.PerPage, query.Sort, total))
}

func (m Model) renderThread() string {
	comments := m.store.Comments()
	if comments == nil || len(comments.Data) == 0 {
		return dimStyle.Render("no comments yet")
	}

	var b strings.Builder
	for _, comment := range comments.Data {
		header := authorStyle.Render(comment.Author.Username) +
			dimStyle.Render(" · "+comment.CreatedAt.Format("2006-01-02 15:04"))
		body := comment.Content
		if r := comment.Reactions; r != nil && (r.Like+r.Unlike+r.Heart) > 0 {
			body += "\n" + dimStyle.Render(
				fmt.Sprintf("+1 %d · -1 %d · ♥ %d", r.Like, r.Unlike, r.Heart))
		}
		b.WriteString(commentStyle.Width(m.width - 2).Render(header + "\n" + body))
		b.WriteString("\n")
	}
	return b.String()
}
