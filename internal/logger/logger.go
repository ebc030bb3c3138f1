// Package logger constructs the application logger.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stdout
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

func NewDebugLogger() *logrus.Logger {
	log := NewLogger()
	log.SetLevel(logrus.DebugLevel)
	return log
}
