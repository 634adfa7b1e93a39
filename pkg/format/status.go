package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

// Options controls human-readable output.
type Options struct {
	UseColors bool
}

// DefaultOptions enables colors unless color output is globally disabled
// (NO_COLOR, non-terminal stdout).
func DefaultOptions() Options {
	return Options{UseColors: !color.NoColor}
}

func paint(opts Options, attrs ...color.Attribute) func(a ...interface{}) string {
	c := color.New(attrs...)
	if !opts.UseColors {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c.SprintFunc()
}

// WriteStatus renders an engine status block.
func WriteStatus(w io.Writer, st types.EngineStatus, opts Options) error {
	label := paint(opts, color.Faint)
	state := paint(opts, color.FgGreen, color.Bold)("monitoring")
	if !st.Active {
		state = paint(opts, color.FgYellow, color.Bold)("paused")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", label("state:     "), state)
	fmt.Fprintf(&b, "%s %s\n", label("mode:      "), st.Mode)
	fmt.Fprintf(&b, "%s %s\n", label("clipboard: "), st.Clipboard)
	fmt.Fprintf(&b, "%s %s\n", label("directory: "), st.Directory)
	if st.LastPath != "" {
		fmt.Fprintf(&b, "%s %s (%s)\n", label("last:      "), st.LastPath, st.Stage)
	}
	fmt.Fprintf(&b, "%s %d published, %d republished, %d dropped\n",
		label("counters:  "), st.Published, st.Republished, st.Dropped)
	if st.LastError != "" {
		fmt.Fprintf(&b, "%s %s\n", label("error:     "), paint(opts, color.FgRed)(st.LastError))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteRecord renders the most recent screenshot record.
func WriteRecord(w io.Writer, rec *types.Record, opts Options) error {
	if rec == nil {
		_, err := fmt.Fprintln(w, "No screenshot has been published yet.")
		return err
	}
	label := paint(opts, color.Faint)
	path := paint(opts, color.FgCyan)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", label("path:        "), path(rec.Path))
	fmt.Fprintf(&b, "%s %s\n", label("origin:      "), rec.Origin)
	fmt.Fprintf(&b, "%s %s\n", label("size:        "), FormatSize(rec.Size))
	fmt.Fprintf(&b, "%s %s\n", label("published:   "), FormatRelativeTime(rec.PublishedAt))
	fmt.Fprintf(&b, "%s %d\n", label("republished: "), rec.Republished)
	_, err := io.WriteString(w, b.String())
	return err
}
