// Package log bridges third-party loggers onto logrus.
package log

import "github.com/sirupsen/logrus"

// BadgerLogrusAdapter implements badger.Logger on a logrus entry.
// Badger's info chatter is demoted to debug so it stays out of crawl output.
type BadgerLogrusAdapter struct {
	entry *logrus.Entry
}

// NewBadgerLogrusAdapter creates a new adapter
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry: entry.WithField("component", "badgerdb")}
}

func (l *BadgerLogrusAdapter) Errorf(f string, v ...any) { l.entry.Errorf(f, v...) }

func (l *BadgerLogrusAdapter) Warningf(f string, v ...any) { l.entry.Warnf(f, v...) }

func (l *BadgerLogrusAdapter) Infof(f string, v ...any) { l.entry.Debugf(f, v...) }

func (l *BadgerLogrusAdapter) Debugf(f string, v ...any) { l.entry.Tracef(f, v...) }
