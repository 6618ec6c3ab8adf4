// Package logging configures the engine's structured logger.
//
// The teacher logs via the stdlib log package with bracketed component
// prefixes. This engine has several concurrent long-running subsystems
// (mutation router, per-tenant worker, cache sweeper) reporting state at
// once, so we follow the pack's structured-logging precedent
// (gallery-so-go-gallery uses sirupsen/logrus) and carry a component
// field instead of a string prefix.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger honoring LOG_LEVEL (default "info").
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// For returns a logger scoped to a named component, the structured
// equivalent of the teacher's "[ComponentName]" log prefixes.
func For(log *logrus.Logger, component string) *logrus.Entry {
	return log.WithField("component", component)
}
