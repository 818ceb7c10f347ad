// Package report renders run summaries for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/dshills/ptags/pkg/types"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A89")

	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(colorMuted)
	okStyle      = lipgloss.NewStyle().Foreground(colorSuccess)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
	errStyle     = lipgloss.NewStyle().Foreground(colorError)
)

// Reporter writes summaries to an output stream
type Reporter struct {
	w      io.Writer
	styled bool
}

// New creates a Reporter. Styling is enabled only when w is a terminal.
func New(w io.Writer) *Reporter {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{w: w, styled: styled}
}

// NewPlain creates a Reporter that never styles its output
func NewPlain(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

func (r *Reporter) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

// Text writes the statistics block for a run
func (r *Reporter) Text(s *types.RunSummary) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n", r.style(titleStyle, "Statistics"))
	fmt.Fprintf(&b, "%s\n", r.style(sectionStyle, "- Options"))
	fmt.Fprintf(&b, "    thread    : %d\n", s.Workers)
	fmt.Fprintf(&b, "    merge     : %s\n\n", s.Strategy)

	fmt.Fprintf(&b, "%s\n", r.style(sectionStyle, "- Searched files"))
	fmt.Fprintf(&b, "    total     : %d\n\n", s.FilesScanned)

	fmt.Fprintf(&b, "%s\n", r.style(sectionStyle, "- Tags"))
	fmt.Fprintf(&b, "    entries   : %d\n", s.Entries)
	fmt.Fprintf(&b, "    duplicates: %d\n", s.Duplicates)
	fmt.Fprintf(&b, "    size      : %s\n\n", humanize.Bytes(uint64(max(s.OutputBytes, 0))))

	fmt.Fprintf(&b, "%s\n", r.style(sectionStyle, "- Elapsed time[ms]"))
	fmt.Fprintf(&b, "    git_files : %d\n", s.DiscoveryElapsed.Milliseconds())
	fmt.Fprintf(&b, "    call_ctags: %d\n", s.DispatchElapsed.Milliseconds())
	fmt.Fprintf(&b, "    write_tags: %d\n", s.MergeElapsed.Milliseconds())
	fmt.Fprintf(&b, "    chunk_avg : %d\n", s.AverageElapsed().Milliseconds())

	if len(s.Chunks) > 0 {
		fmt.Fprintf(&b, "\n%s\n", r.style(sectionStyle, "- Chunks"))
		for _, c := range s.Chunks {
			fmt.Fprintf(&b, "    %3d: %s\n", c.Index, r.chunkLine(c))
		}
	}

	fmt.Fprintf(&b, "\n%s\n", r.statusLine(s))

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Reporter) chunkLine(c types.ChunkStat) string {
	switch {
	case c.Files == 0:
		return r.style(sectionStyle, "empty")
	case c.Failed():
		return fmt.Sprintf("%d files  %s", c.Files, r.style(errStyle, "FAILED "+c.Error))
	default:
		return fmt.Sprintf("%d files  %d tags  %dms", c.Files, c.Entries, c.Elapsed.Milliseconds())
	}
}

func (r *Reporter) statusLine(s *types.RunSummary) string {
	switch s.Status {
	case types.StatusPartial:
		return r.style(warnStyle, fmt.Sprintf("partial: %d of %d chunks omitted %v",
			s.Failed, s.Failed+s.Succeeded, s.FailedIndexes()))
	case types.StatusFailed:
		return r.style(errStyle, "failed")
	default:
		return r.style(okStyle, "complete")
	}
}

// Summary is the JSON form of a RunSummary. Durations are milliseconds.
type Summary struct {
	RunID        string    `json:"run_id"`
	Root         string    `json:"root"`
	Output       string    `json:"output"`
	Workers      int       `json:"workers"`
	Strategy     string    `json:"strategy"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FilesScanned int       `json:"files_scanned"`
	Succeeded    int       `json:"chunks_succeeded"`
	Failed       int       `json:"chunks_failed"`
	Entries      int       `json:"entries"`
	Duplicates   int       `json:"duplicates"`
	OutputBytes  int64     `json:"output_bytes"`

	DiscoveryMs int64 `json:"discovery_ms"`
	DispatchMs  int64 `json:"dispatch_ms"`
	MergeMs     int64 `json:"merge_ms"`
	TotalMs     int64 `json:"total_ms"`

	Chunks []Chunk `json:"chunks,omitempty"`
}

// Chunk is the JSON form of a ChunkStat
type Chunk struct {
	Index     int    `json:"index"`
	Files     int    `json:"files"`
	Entries   int    `json:"entries"`
	ElapsedMs int64  `json:"elapsed_ms"`
	ExitCode  int    `json:"exit_code"`
	Error     string `json:"error,omitempty"`
}

// ToSummary converts a RunSummary into its JSON form
func ToSummary(s *types.RunSummary) Summary {
	out := Summary{
		RunID:        s.RunID,
		Root:         s.Root,
		Output:       s.Output,
		Workers:      s.Workers,
		Strategy:     string(s.Strategy),
		Status:       string(s.Status),
		StartedAt:    s.StartedAt,
		FilesScanned: s.FilesScanned,
		Succeeded:    s.Succeeded,
		Failed:       s.Failed,
		Entries:      s.Entries,
		Duplicates:   s.Duplicates,
		OutputBytes:  s.OutputBytes,
		DiscoveryMs:  s.DiscoveryElapsed.Milliseconds(),
		DispatchMs:   s.DispatchElapsed.Milliseconds(),
		MergeMs:      s.MergeElapsed.Milliseconds(),
		TotalMs:      s.TotalElapsed.Milliseconds(),
	}
	for _, c := range s.Chunks {
		out.Chunks = append(out.Chunks, Chunk{
			Index:     c.Index,
			Files:     c.Files,
			Entries:   c.Entries,
			ElapsedMs: c.Elapsed.Milliseconds(),
			ExitCode:  c.ExitCode,
			Error:     c.Error,
		})
	}
	return out
}

// JSON writes the summary as indented JSON
func (r *Reporter) JSON(s *types.RunSummary) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(ToSummary(s))
}

// Runs writes one line per run, newest first as given
func (r *Reporter) Runs(runs []*types.RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(r.w, "no runs recorded")
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-36s  %-20s  %-8s  %6s  %8s  %8s  %s\n",
		"RUN", "STARTED", "STATUS", "FILES", "TAGS", "TIME", "ROOT")
	for _, s := range runs {
		status := string(s.Status)
		switch s.Status {
		case types.StatusPartial:
			status = r.style(warnStyle, fmt.Sprintf("%-8s", status))
		case types.StatusComplete:
			status = r.style(okStyle, fmt.Sprintf("%-8s", status))
		default:
			status = fmt.Sprintf("%-8s", status)
		}
		fmt.Fprintf(&b, "%-36s  %-20s  %s  %6d  %8d  %8s  %s\n",
			s.RunID,
			humanize.Time(s.StartedAt),
			status,
			s.FilesScanned,
			s.Entries,
			s.TotalElapsed.Round(time.Millisecond),
			s.Root)
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}
