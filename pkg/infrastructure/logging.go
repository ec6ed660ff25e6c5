// Package infrastructure provides reusable infrastructure components.
package infrastructure

import (
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// fxZapLogger routes Fx framework events through a zap.SugaredLogger so the
// dependency graph's own logging matches the application's.
type fxZapLogger struct {
	log *zap.SugaredLogger
}

// NewFxLoggerAdapter returns an fxevent.Logger backed by the given zap logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &fxZapLogger{log: logger.Sugar()}
}

// LogEvent implements fxevent.Logger.
func (l *fxZapLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		l.log.Debugf("OnStart executing: %s (%s)", e.FunctionName, e.CallerName)
	case *fxevent.OnStartExecuted:
		l.hook("OnStart", e.FunctionName, e.Err)
	case *fxevent.OnStopExecuting:
		l.log.Debugf("OnStop executing: %s (%s)", e.FunctionName, e.CallerName)
	case *fxevent.OnStopExecuted:
		l.hook("OnStop", e.FunctionName, e.Err)
	case *fxevent.Supplied:
		if e.Err != nil {
			l.log.Errorf("supply failed: %s: %v", e.TypeName, e.Err)
		} else {
			l.log.Debugf("supplied: %s", e.TypeName)
		}
	case *fxevent.Provided:
		if e.Err != nil {
			l.log.Errorf("provide failed: %v", e.Err)
		} else {
			for _, name := range e.OutputTypeNames {
				l.log.Debugf("provided: %s", name)
			}
		}
	case *fxevent.Invoking:
		l.log.Debugf("invoking: %s", e.FunctionName)
	case *fxevent.Invoked:
		if e.Err != nil {
			l.log.Errorf("invoke failed: %s: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Stopping:
		l.log.Infof("received signal: %s", e.Signal)
	case *fxevent.Stopped:
		l.failable("stopped", e.Err)
	case *fxevent.RollingBack:
		l.log.Errorf("start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		l.failable("rolled back", e.Err)
	case *fxevent.Started:
		l.failable("started", e.Err)
	case *fxevent.LoggerInitialized:
		l.failable("fx logger initialized", e.Err)
	default:
		l.log.Debugf("fx event: %T", event)
	}
}

func (l *fxZapLogger) hook(phase, fn string, err error) {
	if err != nil {
		l.log.Errorf("%s failed: %s: %v", phase, fn, err)
		return
	}
	l.log.Debugf("%s executed: %s", phase, fn)
}

func (l *fxZapLogger) failable(msg string, err error) {
	if err != nil {
		l.log.Errorf("%s with error: %v", msg, err)
		return
	}
	l.log.Info(msg)
}
