package main

import (
	"net/http"
	"sync/atomic"
)

// handlerSwapper serves through whichever handler was mounted last. A SIGHUP
// reload mounts a new API handler when the metrics toggle changes.
type handlerSwapper struct {
	current atomic.Pointer[mounted]
}

type mounted struct{ http.Handler }

func newHandlerSwapper(h http.Handler) *handlerSwapper {
	s := &handlerSwapper{}
	s.Swap(h)
	return s
}

func (s *handlerSwapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.current.Load().ServeHTTP(w, r)
}

// Swap mounts h; in-flight requests finish on the previous handler.
func (s *handlerSwapper) Swap(h http.Handler) {
	s.current.Store(&mounted{h})
}
