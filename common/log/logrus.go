package log

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var basePath string

func init() {
	basePath, _ = filepath.Abs(".")
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.InfoLevel)
	logrus.StandardLogger().Formatter.(*logrus.TextFormatter).ForceColors = isatty.IsTerminal(os.Stderr.Fd())
	logrus.StandardLogger().Formatter.(*logrus.TextFormatter).CallerPrettyfier = prettyCaller
	logrus.AddHook(new(TaggedHook))
}

func prettyCaller(frame *runtime.Frame) (function string, file string) {
	file = frame.File + ":" + strconv.Itoa(frame.Line)
	if strings.HasPrefix(file, basePath) {
		file = file[len(basePath)+1:]
	}
	file = " " + file
	return
}

func NewLogger(tag string) *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger()).WithField("tag", tag)
}

// SetVerbose switches the standard logger between info output and trace
// output annotated with the calling file.
func SetVerbose(verbose bool) {
	logrus.SetReportCaller(verbose)
	if verbose {
		logrus.SetLevel(logrus.TraceLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects log output. Relay data owns stdout, so callers
// must never point this at it.
func SetOutput(writer io.Writer) {
	logrus.SetOutput(writer)
}

type TaggedHook struct{}

func (h *TaggedHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *TaggedHook) Fire(entry *logrus.Entry) error {
	if tagObj, loaded := entry.Data["tag"]; loaded {
		tag := tagObj.(string)
		delete(entry.Data, "tag")
		entry.Message = strings.ReplaceAll(entry.Message, tag+": ", "")
		entry.Message = "[" + tag + "]: " + entry.Message
	}
	return nil
}
