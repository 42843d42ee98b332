// Package async schedules the gateway's periodic background work.
package async

import (
	"context"
	"reflect"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "async")

// RunEvery invokes f once per period until the context is cancelled. It
// returns immediately; f runs on its own goroutine, with the first invocation
// one full period after the call.
func RunEvery(ctx context.Context, period time.Duration, f func()) {
	funcName := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.WithField("function", funcName).Trace("Running periodic task")
				f()
			case <-ctx.Done():
				log.WithField("function", funcName).Debug("Stopping periodic task")
				return
			}
		}
	}()
}
