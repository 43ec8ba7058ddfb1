package driver

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
)

// hclogLogger is the alternate Logger backend (spec.md §11 domain-stack
// table), selected via Config.LoggerBackend == LoggerHCLog. Useful when
// this driver runs embedded next to other Hashicorp-tooling components
// that already standardize on hclog's leveled writer.
type hclogLogger struct {
	hclog.Logger
}

func NewHCLogLogger() Logger {
	l := hclog.New(&hclog.LoggerOptions{
		Name:   "aeron-driver",
		Level:  hclog.Info,
		Output: os.Stderr,
	})
	return &hclogLogger{Logger: l}
}

func (l *hclogLogger) Debugf(format string, v ...interface{}) {
	l.Logger.Debug(fmt.Sprintf(format, v...))
}
func (l *hclogLogger) Infof(format string, v ...interface{}) {
	l.Logger.Info(fmt.Sprintf(format, v...))
}
func (l *hclogLogger) Warnf(format string, v ...interface{}) {
	l.Logger.Warn(fmt.Sprintf(format, v...))
}
func (l *hclogLogger) Errorf(format string, v ...interface{}) {
	l.Logger.Error(fmt.Sprintf(format, v...))
}
