package diag

import (
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// TimestampPattern is the strftime layout used for the default *.hsp
// session filename. The logger's timestamp prefix does not use it; it
// uses the Go time layout set in NewSink.
const TimestampPattern = "%Y%m%d-%H%M%S"

// DefaultSessionName formats a default *.hsp filename stamped with t,
// e.g. "session-20300214-091512.hsp".
func DefaultSessionName(t time.Time) (string, error) {
	f, err := strftime.New(TimestampPattern)
	if err != nil {
		return "", err
	}
	return "session-" + f.FormatString(t) + ".hsp", nil
}

// Sink drains a Bus and forwards every Event to a charmbracelet/log
// logger, the structured logger the teacher's dependency set already
// carries. Running it is the controller's job, never the core's.
type Sink struct {
	logger *charmlog.Logger
}

// NewSink builds a Sink writing to stderr by default.
func NewSink() *Sink {
	return &Sink{logger: charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})}
}

// Run drains bus until it is closed or stop is closed, logging every event.
func (s *Sink) Run(bus *Bus, stop <-chan struct{}) {
	for {
		select {
		case ev, ok := <-bus.Events():
			if !ok {
				return
			}
			s.log(ev)
		case <-stop:
			return
		}
	}
}

func (s *Sink) log(ev Event) {
	logger := s.logger.With("component", ev.Component)
	args := make([]any, 0, len(ev.Fields)*2)
	for k, v := range ev.Fields {
		args = append(args, k, v)
	}
	switch ev.Level {
	case LevelDebug:
		logger.Debug(ev.Message, args...)
	case LevelWarn:
		logger.Warn(ev.Message, args...)
	case LevelError:
		logger.Error(ev.Message, args...)
	default:
		logger.Info(ev.Message, args...)
	}
}
