package observer

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"tunecore/internal/search/strategy"
)

// progressMu is shared by every ProgressPrinter in the process.
var progressMu sync.Mutex

// ProgressPrinter is the stock line-formatted progress sink: one
// line per observer event, thread-safe via a process-wide mutex, and
// prefixed with rank/size when running under the distributed queue. It
// deliberately uses logrus (rather than the ambient zerolog logger) for a
// plain, human-scannable line format distinct from the structured
// application log.
type ProgressPrinter struct {
	mu      *sync.Mutex
	log     *logrus.Logger
	rank    int
	size    int
	labeled bool
}

// NewProgressPrinter writes to w (default os.Stdout) using a plain text
// formatter. rank/size label every line when size > 1 (running under the
// distributed queue).
func NewProgressPrinter(w io.Writer, rank, size int) *ProgressPrinter {
	if w == nil {
		w = os.Stdout
	}
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
		DisableQuote:  true,
	})
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	return &ProgressPrinter{mu: &progressMu, log: l, rank: rank, size: size, labeled: size > 1}
}

func (p *ProgressPrinter) fields() logrus.Fields {
	if !p.labeled {
		return logrus.Fields{}
	}
	return logrus.Fields{"rank": p.rank, "size": p.size}
}

func (p *ProgressPrinter) BeginSearch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.WithFields(p.fields()).Info("search started")
}

func (p *ProgressPrinter) BeginIter(x strategy.ParameterVector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.WithFields(p.fields()).WithField("x", x).Info("evaluating")
}

func (p *ProgressPrinter) EndIter(x strategy.ParameterVector, m strategy.MeasurementVector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.WithFields(p.fields()).WithField("x", x).WithField("measurement", m).Info("evaluated")
}

func (p *ProgressPrinter) EndSearch(x strategy.ParameterVector, m strategy.MeasurementVector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.WithFields(p.fields()).WithField("x", x).WithField("measurement", m).Info("search finished")
}

var _ strategy.Observer = (*ProgressPrinter)(nil)
