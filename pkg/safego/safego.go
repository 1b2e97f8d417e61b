package safego

import (
	"go.uber.org/zap"
)

// Go launches a goroutine with panic recovery. A panic is logged with the
// goroutine's name and the goroutine exits instead of crashing the process.
//
//	safego.Go(logger, "prompt-watcher", func() { ... })
func Go(logger *zap.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Goroutine panicked",
					zap.String("goroutine", name),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
			}
		}()
		fn()
	}()
}
