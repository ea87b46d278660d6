package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws one progress bar per job with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *reindexModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer fails when the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	tracker := NewProgressTracker()
	model := newReindexModel(tracker, cfg.Title)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}
	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	ctx, r.cancel = context.WithCancel(ctx)
	opts = append(opts, tea.WithContext(ctx))

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Update(event)
	if event.Stage == StageComplete {
		r.tracker.Finish(event.Job)
	}
	r.send(refreshMsg{})
}

func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
	if event.Job != "" && !event.IsWarn {
		r.tracker.Finish(event.Job)
	}
	r.send(refreshMsg{})
}

func (r *TUIRenderer) Complete(stats CompletionStats) {
	for _, j := range stats.Jobs {
		r.tracker.Finish(j.Job)
	}
	r.send(completeMsg(stats))
}

// Stop quits the program, waiting at most two seconds so Ctrl+C never
// hangs the process.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program == nil {
		return nil
	}
	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type refreshMsg struct{}
type completeMsg CompletionStats
type tickMsg time.Time

type reindexModel struct {
	tracker  *ProgressTracker
	title    string
	width    int
	quitting bool
	complete bool
	stats    CompletionStats
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
}

func newReindexModel(tracker *ProgressTracker, title string) *reindexModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen))
	return &reindexModel{
		tracker: tracker,
		title:   title,
		width:   80,
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorGreen),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
		styles: DefaultStyles(),
	}
}

func (m *reindexModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *reindexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s := msg.String(); s == "ctrl+c" || s == "q" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(20, msg.Width/2-10)
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case tickMsg:
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *reindexModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render(m.title))
	b.WriteString("  ")
	b.WriteString(m.styles.Label.Render(formatDuration(m.tracker.Elapsed())))
	b.WriteString("\n\n")

	jobs := m.tracker.Jobs()
	nameWidth := 0
	for _, j := range jobs {
		nameWidth = max(nameWidth, len(j.Job))
	}
	for _, j := range jobs {
		b.WriteString(m.renderJob(j, nameWidth))
		b.WriteString("\n")
	}
	if len(jobs) == 0 {
		b.WriteString(m.spinner.View() + " " + m.styles.Dim.Render("opening databases"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *reindexModel) renderJob(j JobProgress, nameWidth int) string {
	name := fmt.Sprintf("%-*s", nameWidth, j.Job)
	switch j.Stage {
	case StageComplete:
		return m.styles.Success.Render("✓ ") + name
	case StagePreparing:
		return m.spinner.View() + " " + name + "  " + m.styles.Dim.Render(j.Message)
	}
	line := m.spinner.View() + " " + m.styles.Active.Render(name) + "  " +
		m.bar.ViewAs(j.Fraction()) + "  " +
		m.styles.Label.Render(fmt.Sprintf("%d/%d", j.Current, j.Total))
	if j.ETA > 0 {
		line += m.styles.Dim.Render("  ~" + formatDuration(j.ETA))
	}
	return line
}

func (m *reindexModel) renderStatusBar() string {
	errs, warns := m.tracker.Counts()
	var parts []string
	if warns > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("%d warnings", warns)))
	}
	if errs > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("%d failed", errs)))
	}
	parts = append(parts, m.styles.Dim.Render("q to quit"))
	return strings.Join(parts, m.styles.Dim.Render("  |  "))
}

func (m *reindexModel) renderComplete() string {
	lines := []string{m.styles.Success.Render("Reindex complete"), ""}
	if n := m.stats.Failed(); n > 0 {
		lines[0] = m.styles.Warning.Render(fmt.Sprintf("Reindex finished, %d of %d jobs failed", n, len(m.stats.Jobs)))
	}
	for _, j := range m.stats.Jobs {
		style := m.styles.Active
		if j.Err != nil {
			style = m.styles.Error
		}
		lines = append(lines, style.Render(jobSummary(j)))
	}
	lines = append(lines, "", m.styles.Label.Render("Duration: ")+formatDuration(m.stats.Duration))
	if m.stats.Embedder.Model != "" {
		lines = append(lines, m.styles.Label.Render("Embedding model: ")+
			fmt.Sprintf("%s (%d dims)", m.stats.Embedder.Model, m.stats.Embedder.Dimensions))
	}
	return m.styles.Panel.Width(max(40, m.width-4)).Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration prints "42s", "3m 5s" or "1h 2m".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		m, s := int(d.Minutes()), int(d.Seconds())%60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

var _ Renderer = (*TUIRenderer)(nil)
