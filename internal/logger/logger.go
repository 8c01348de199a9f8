package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// InitLogger configures the shared structured logger. Level comes from the
// argument, falling back to LOG_LEVEL and then to info.
func InitLogger(logLevel string) *logrus.Logger {
	l := logrus.New()

	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			logLevel = "info"
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		l.SetLevel(level)
	} else {
		l.SetLevel(logrus.InfoLevel)
		l.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
	}

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	l.SetOutput(os.Stdout)

	log = l
	return l
}

// GetLogger returns the shared logger, initializing it on first use.
func GetLogger() *logrus.Logger {
	if log == nil {
		return InitLogger("")
	}
	return log
}

// WithComponent creates a logger entry tagged with an engine component name.
func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}
