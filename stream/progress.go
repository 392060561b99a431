package stream

import (
	"io"
)

// progressStep is the milestone granularity in percent.
const progressStep = 5

// progressReader counts consumed source bytes and reports percentage milestones.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	reported int
	fn       ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, reported: -1, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	p.report(false)

	return n, err
}

// report calls the progress callback when a new milestone is reached.
// done forces the final 100% milestone.
func (p *progressReader) report(done bool) {
	if p.fn == nil {
		return
	}

	percent := 100
	if !done {
		if p.total <= 0 {
			return
		}
		percent = int(p.read * 100 / p.total)
		percent = min(percent-percent%progressStep, 100-progressStep)
	}

	if percent > p.reported {
		p.reported = percent
		p.fn(percent)
	}
}
