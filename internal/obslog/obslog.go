// Package obslog wires a process-wide structured logger, returning
// pre-seeded logrus.Entry values rather than a package-level logger so
// every call site carries its own identifying fields through deep
// call stacks.
package obslog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. JSON formatting is used outside of
// local development so log lines are machine-parseable by whatever
// aggregator ingests them; textFormat is intended for `go run` on a
// terminal.
func New(level string, textFormat bool) *logrus.Logger {
	var log = logrus.New()
	log.SetOutput(os.Stderr)

	if textFormat {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}

// ForInboxRow returns a log.Entry pre-seeded with the fields that
// identify one inbox row, so every line logged while processing it
// carries that identity without being threaded through every call.
func ForInboxRow(log *logrus.Logger, inboxID, messageID int64, decisionTrackingID string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"inbox_id":             inboxID,
		"message_id":           messageID,
		"decision_tracking_id": decisionTrackingID,
	})
}

// ForWorker returns a log.Entry identifying one worker goroutine.
func ForWorker(log *logrus.Logger, workerID string) *logrus.Entry {
	return log.WithField("worker_id", workerID)
}

// ForStage extends an existing entry with the current pipeline stage
// name ("merge", "split", "ocr", ...), so every log line inside a
// stage carries it without threading a string through every call.
func ForStage(entry *logrus.Entry, stage string) *logrus.Entry {
	return entry.WithField("stage", stage)
}
