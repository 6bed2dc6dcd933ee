package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type LogStatus int

const (
	VERBOSE LogStatus = iota
	DEBUG
	INFO
	SUCCESS
	NEW
	REMOVE
	STOP
	WARNING
	ERROR
	FATAL
)

func (e LogStatus) String() string {
	return []string{
		"V",
		"D",
		"I",
		"✓",
		"+",
		"-",
		"X",
		"!",
		"!!",
		"PANIC",
	}[e]
}

func (e LogStatus) Color() *color.Color {
	return []*color.Color{
		color.New(color.FgWhite, color.Italic),                //Verbose
		color.New(color.FgWhite, color.Italic),                //Debug
		color.New(color.FgWhite),                              //Info
		color.New(color.FgHiGreen),                            //Success
		color.New(color.FgGreen, color.Italic),                //New
		color.New(color.FgYellow, color.Italic),               //Remove
		color.New(color.FgHiYellow),                           //Stop
		color.New(color.FgYellow, color.Underline),            //Warning
		color.New(color.FgHiRed, color.Bold),                  //Error
		color.New(color.FgHiRed, color.Bold, color.Underline), //PANIC
	}[e]
}

// ParseStatus converts a human-friendly level name (e.g. "debug", "warning")
// in to a LogStatus. Unknown names fall back to INFO.
func ParseStatus(level string) LogStatus {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "verbose":
		return VERBOSE
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARNING
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

type Logger interface {
	Emit(LogStatus, string, ...interface{})
	Verbosef(string, ...interface{})
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})
}

type loggerImpl struct {
	name string
}

func (l *loggerImpl) Emit(status LogStatus, message string, interpolations ...interface{}) {
	Log.Emit(status, l.name, message, interpolations...)
}

func (l *loggerImpl) Verbosef(message string, args ...interface{}) {
	l.Emit(VERBOSE, message, args...)
}

func (l *loggerImpl) Debugf(message string, args ...interface{}) {
	l.Emit(DEBUG, message, args...)
}

func (l *loggerImpl) Infof(message string, args ...interface{}) {
	l.Emit(INFO, message, args...)
}

func (l *loggerImpl) Warnf(message string, args ...interface{}) {
	l.Emit(WARNING, message, args...)
}

func (l *loggerImpl) Errorf(message string, args ...interface{}) {
	l.Emit(ERROR, message, args...)
}

type LoggerManager interface {
	GetLogger(string) Logger
	Emit(LogStatus, string, string, ...interface{})
	SetMinimumStatus(LogStatus)
	SetOutput(io.Writer)
}

var Log LoggerManager = &loggerMgr{
	offset:  0,
	minimum: INFO,
	out:     os.Stdout,
}

type loggerMgr struct {
	sync.Mutex
	offset  int
	minimum LogStatus
	out     io.Writer
}

func (l *loggerMgr) GetLogger(name string) Logger {
	return &loggerImpl{name: name}
}

func (l *loggerMgr) SetMinimumStatus(status LogStatus) {
	l.Lock()
	defer l.Unlock()
	l.minimum = status
}

func (l *loggerMgr) SetOutput(out io.Writer) {
	l.Lock()
	defer l.Unlock()
	l.out = out
}

func (l *loggerMgr) Emit(status LogStatus, name string, message string, interpolations ...interface{}) {
	l.Lock()
	defer l.Unlock()
	if status < l.minimum {
		return
	}

	l.setNameOffset(len(name))
	padding := strings.Repeat(" ", l.offset-len(name))
	msg := fmt.Sprintf("[%s] %s(%s) %s", name, padding, status, fmt.Sprintf(message, interpolations...))

	status.Color().Fprint(l.out, msg)
}

func (l *loggerMgr) setNameOffset(offset int) {
	if offset > l.offset {
		l.offset = offset
	}
}

func Get(name string) Logger {
	return Log.GetLogger(name)
}
