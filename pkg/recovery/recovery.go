// Package recovery turns panics in event handlers and render passes into
// errors so one bad event cannot take a live session down.
package recovery

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

// ErrPanic wraps every recovered panic.
var ErrPanic = errors.New("recovery: panic")

// PanicError carries the recovered value and the stack at the panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("recovery: panic: %v", e.Value)
}

// Unwrap makes errors.Is(err, ErrPanic) true.
func (e *PanicError) Unwrap() error {
	return ErrPanic
}

// Guard runs fn and converts a panic into a *PanicError. A logger, when
// given, records the panic with its stack.
func Guard(logger logging.Logger, name string, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		pe := &PanicError{Value: r, Stack: debug.Stack()}
		logging.OrNop(logger).Error("recovered panic",
			logging.String("op", name),
			logging.Any("panic", r),
			logging.String("stack", string(pe.Stack)),
		)
		err = pe
	}()
	return fn()
}

// Middleware answers 500 instead of dropping the connection when a handler
// panics. http.ErrAbortHandler is re-raised, as net/http expects.
func Middleware(logger logging.Logger) func(http.Handler) http.Handler {
	logger = logging.OrNop(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("http handler panic",
					logging.String("path", r.URL.Path),
					logging.Any("panic", rec),
					logging.String("stack", string(debug.Stack())),
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
