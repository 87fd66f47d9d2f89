// Package ldlog provides the logging abstraction used throughout the evaluation core.
//
// It intentionally does not depend on any particular logging framework; callers configure a
// base logger (anything implementing Printf/Println, e.g. the standard library's log.Logger)
// and the minimum level to display, and the rest of the module writes through a Loggers value
// without knowing or caring what sink is behind it.
package ldlog

import (
	"log"
	"os"
)

// LogLevel represents one of the log levels supported by Loggers.
type LogLevel int

// Log levels in increasing order of severity.
const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	None
)

func (l LogLevel) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "NONE"
	}
}

// BaseLogger is the minimal interface a logging destination must implement. The standard
// library's *log.Logger satisfies this.
type BaseLogger interface {
	Println(values ...interface{})
	Printf(format string, values ...interface{})
}

// Loggers holds the logging destinations for each level. The zero value is usable and writes
// Info level and above to stderr.
type Loggers struct {
	base        BaseLogger
	perLevel    [None]BaseLogger
	minLevel    LogLevel
	initialized bool
}

// Init ensures the Loggers value has its defaults applied. It is safe to call multiple times
// and is also called automatically by the other Loggers methods.
func (l *Loggers) Init() {
	l.init()
}

func (l *Loggers) init() {
	if l.initialized {
		return
	}
	l.initialized = true
	if l.minLevel == 0 {
		l.minLevel = Info
	}
	if l.base == nil {
		l.base = log.New(os.Stderr, "", log.LstdFlags)
	}
}

func (l *Loggers) destination(level LogLevel) BaseLogger {
	if l.perLevel[level] != nil {
		return l.perLevel[level]
	}
	return l.base
}

// SetMinLevel sets the minimum level that will be logged; messages below it are discarded.
func (l *Loggers) SetMinLevel(level LogLevel) {
	l.init()
	l.minLevel = level
}

// SetBaseLogger sets the destination used for all levels that do not have a more specific
// logger set via SetBaseLoggerForLevel.
func (l *Loggers) SetBaseLogger(logger BaseLogger) {
	l.base = logger
	l.init()
}

// SetBaseLoggerForLevel overrides the destination used for just one level.
func (l *Loggers) SetBaseLoggerForLevel(level LogLevel, logger BaseLogger) {
	l.init()
	l.perLevel[level] = logger
}

// IsDebugEnabled reports whether Debug level messages will actually be written anywhere.
func (l *Loggers) IsDebugEnabled() bool {
	l.init()
	return l.minLevel <= Debug
}

func (l *Loggers) write(level LogLevel, values []interface{}) {
	l.init()
	if level < l.minLevel {
		return
	}
	l.destination(level).Println(append([]interface{}{level.String() + ":"}, values...)...)
}

func (l *Loggers) writef(level LogLevel, format string, values []interface{}) {
	l.init()
	if level < l.minLevel {
		return
	}
	l.destination(level).Printf(level.String()+": "+format, values...)
}

// Debug writes a message at Debug level.
func (l *Loggers) Debug(values ...interface{}) { l.write(Debug, values) }

// Debugf writes a formatted message at Debug level.
func (l *Loggers) Debugf(format string, values ...interface{}) { l.writef(Debug, format, values) }

// Info writes a message at Info level.
func (l *Loggers) Info(values ...interface{}) { l.write(Info, values) }

// Infof writes a formatted message at Info level.
func (l *Loggers) Infof(format string, values ...interface{}) { l.writef(Info, format, values) }

// Warn writes a message at Warn level.
func (l *Loggers) Warn(values ...interface{}) { l.write(Warn, values) }

// Warnf writes a formatted message at Warn level.
func (l *Loggers) Warnf(format string, values ...interface{}) { l.writef(Warn, format, values) }

// Error writes a message at Error level.
func (l *Loggers) Error(values ...interface{}) { l.write(Error, values) }

// Errorf writes a formatted message at Error level.
func (l *Loggers) Errorf(format string, values ...interface{}) { l.writef(Error, format, values) }
