// Package progress renders the scheduler's per-phase job completions
// onto a terminal bar, swapping to a fresh bar each time the dominant
// phase changes. The swap-on-phase-change shape is grounded on
// runLocalIndex's SetProgressCallback/NewProgressBar pairing in
// vjache-cie's index command.
package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Reporter drives one progressbar.ProgressBar per phase.
type Reporter struct {
	out   io.Writer
	width int
	total map[string]int
	done  map[string]int

	bar   *progressbar.ProgressBar
	phase string
}

// New builds a Reporter that writes to out at width columns, where
// total maps a scheduler job type to the number of jobs of that type
// the current plan will dispatch.
func New(out io.Writer, width int, total map[string]int) *Reporter {
	return &Reporter{out: out, width: width, total: total, done: make(map[string]int)}
}

// Advance records one completed job of phase, opening a fresh bar
// whenever phase differs from the current bar's phase and closing the
// previous phase's bar. A
// phase absent from total (nothing planned for it) is a no-op.
func (r *Reporter) Advance(phase string) {
	if r.total[phase] == 0 {
		return
	}
	if r.phase != phase {
		r.finishCurrent()
		r.phase = phase
		r.bar = progressbar.NewOptions(r.total[phase],
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetWidth(r.width),
			progressbar.OptionSetDescription(phase),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetPredictTime(false),
		)
	}
	r.done[phase]++
	r.bar.Set(r.done[phase])
}

// Finish closes whatever bar is currently open.
func (r *Reporter) Finish() {
	r.finishCurrent()
}

func (r *Reporter) finishCurrent() {
	if r.bar != nil {
		r.bar.Finish()
		r.bar = nil
	}
}
