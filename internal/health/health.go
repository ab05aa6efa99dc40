// Package health serves the liveness and readiness probes.
package health

import (
	"fmt"
	"math"
	"net/http"
	"sync/atomic"

	"github.com/star/skygeo/geodetic"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readiness reports whether the service should receive traffic. It starts
// not ready; the server marks it ready once listening and clears it when
// draining for shutdown.
type Readiness struct {
	ready atomic.Bool
}

func (rd *Readiness) SetReady(v bool) { rd.ready.Store(v) }

func (rd *Readiness) Ready() bool { return rd.ready.Load() }

// Readyz returns 200 "ready\n" when ready and 503 otherwise.
func (rd *Readiness) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !rd.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}

// SelfCheck runs a geodetic round trip at a fixed point and fails if the
// result drifts by more than a micrometre.
func SelfCheck() error {
	in := geodetic.Point{Lat: 42, Lon: -82, Alt: 200}
	p, err := geodetic.ToECEF(in)
	if err != nil {
		return fmt.Errorf("self check: %w", err)
	}
	out, err := geodetic.FromECEF(p)
	if err != nil {
		return fmt.Errorf("self check: %w", err)
	}
	if math.Abs(out.Lat-in.Lat) > 1e-9 || math.Abs(out.Lon-in.Lon) > 1e-9 || math.Abs(out.Alt-in.Alt) > 1e-6 {
		return fmt.Errorf("self check: round trip %+v -> %+v", in, out)
	}
	return nil
}
