// Package telemetry centralizes structured logging so every component
// tags its lines with the same field names.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the package-wide logrus formatter, matching the
// teacher's timestamped text format.
func Init(debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// For returns a logger pre-tagged with the owning component's name.
// Callers add program/event/signature fields as needed:
//
//	telemetry.For("subscriber").WithField("program", id).Info("connected")
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
