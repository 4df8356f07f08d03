// Package telemetry provides the structured logger used across the
// evaluator pipeline.
package telemetry

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// Init initializes the structured logger with proper configuration.
func Init(logLevel string, isDevelopment bool) *logrus.Logger {
	log := logrus.New()

	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", logLevel).Warn("invalid LOG_LEVEL, using info")
	}

	if !isDevelopment || strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}

	log.SetOutput(os.Stdout)
	Logger = log
	return log
}

// Get returns the global logger instance, lazily initializing it with
// production defaults if no one called Init yet.
func Get() *logrus.Logger {
	if Logger == nil {
		return Init("info", false)
	}
	return Logger
}

// WithComponent scopes a logger entry to one pipeline stage ("regime",
// "copula", "psd_repair", ...).
func WithComponent(component string) *logrus.Entry {
	return Get().WithField("component", component)
}

// WithEvaluation scopes a logger entry to a single evaluate() call.
func WithEvaluation(requestID string, legCount int) *logrus.Entry {
	return Get().WithFields(logrus.Fields{
		"request_id": requestID,
		"leg_count":  legCount,
	})
}

// WithEvaluationContext scopes a logger entry with request and component
// context together.
func WithEvaluationContext(requestID, component string) *logrus.Entry {
	return Get().WithFields(logrus.Fields{
		"request_id": requestID,
		"component":  component,
	})
}
