package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

// Console writes user facing output. Results go to Out, progress to ErrOut.
type Console struct {
	Out    io.Writer
	ErrOut io.Writer

	renderer *lipgloss.Renderer
	noColor  bool
	errTTY   bool
}

// New creates a console. Colors are dropped when noColor is set or Out is
// not a terminal.
func New(out, errOut io.Writer, noColor bool) *Console {
	return &Console{
		Out:      out,
		ErrOut:   errOut,
		renderer: lipgloss.NewRenderer(out),
		noColor:  noColor || os.Getenv("NO_COLOR") != "",
		errTTY:   isTerminal(errOut),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// IsStderrTTY reports whether progress can redraw in place.
func (c *Console) IsStderrTTY() bool {
	return c.errTTY
}

// style binds s to the console renderer and strips colors when disabled.
func (c *Console) style(s lipgloss.Style) lipgloss.Style {
	s = s.Renderer(c.renderer)
	if c.noColor {
		s = s.UnsetForeground().UnsetBackground().UnsetBorderForeground()
	}
	return s
}

// Header prints the boxed title shown at the start of a run.
func (c *Console) Header(title, subtitle string) {
	body := c.style(TitleStyle).Render(title)
	if subtitle != "" {
		body += "\n" + c.style(MutedStyle).Render(subtitle)
	}
	fmt.Fprintln(c.Out, c.style(PanelStyle).Render(body))
}

// Settings prints a two column table of the effective settings.
func (c *Console) Settings(rows [][2]string) {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{r[0], r[1]})
	}
	fmt.Fprintln(c.Out, c.Table([]string{"Setting", "Value"}, data))
}

// Table renders rows under headers.
func (c *Console) Table(headers []string, rows [][]string) string {
	header := c.style(TableHeaderStyle)
	cell := c.style(TableCellStyle)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(c.style(TableBorderStyle)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		String()
}

// Step announces a pipeline step and the command it runs.
func (c *Console) Step(title, command string) {
	fmt.Fprintf(c.Out, "%s %s\n", c.style(StepStyle).Render("Running:"), title)
	if command != "" {
		fmt.Fprintln(c.Out, c.style(MutedStyle).Render(command))
	}
}

// Success prints msg in a green box.
func (c *Console) Success(msg string) {
	fmt.Fprintln(c.Out, c.style(PanelSuccessStyle).Render(c.style(SuccessStyle).Render(msg)))
}

// Info prints a plain line.
func (c *Console) Info(format string, args ...any) {
	fmt.Fprintf(c.Out, format+"\n", args...)
}

// Muted prints a dimmed line.
func (c *Console) Muted(format string, args ...any) {
	fmt.Fprintln(c.Out, c.style(MutedStyle).Render(fmt.Sprintf(format, args...)))
}

// Warn prints a warning to ErrOut.
func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintf(c.ErrOut, "%s %s\n", c.style(WarningStyle).Render("Warning:"), fmt.Sprintf(format, args...))
}

// Error prints an error message to ErrOut.
func (c *Console) Error(msg string) {
	fmt.Fprintf(c.ErrOut, "%s %s\n", c.style(ErrorStyle).Render("Error:"), msg)
}

// Raw writes s to ErrOut unchanged. Tool stderr is passed through this way.
func (c *Console) Raw(s string) {
	fmt.Fprint(c.ErrOut, s)
}
