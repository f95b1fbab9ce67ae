package mac

import "github.com/sirupsen/logrus"

// Logger is the structured logging interface every component in this
// machine logs through. Callers can supply their own
// logrus.FieldLogger (e.g. a logger bound to a file or a test hook)
// instead of the package default.
type Logger = logrus.FieldLogger

func defaultLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger())
}
