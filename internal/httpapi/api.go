package httpapi

import (
	"context"
	"net/http"

	"crisisdesk.org/internal/auth"
	"crisisdesk.org/internal/obs"
	"crisisdesk.org/internal/stream"
)

// ReadyProbe reports whether the backing store is reachable.
type ReadyProbe struct {
	Pinger interface {
		Ping(ctx context.Context) error
	}
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Pinger == nil {
		return nil
	}
	return rp.Pinger.Ping(ctx)
}

// API is the HTTP layer over the auth service.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	events     *stream.Stream
	readyProbe ReadyProbe
	version    string

	// SecureCookies marks the session cookie Secure; enabled in production
	// deployments behind TLS.
	SecureCookies bool
}

// Login attempts per client IP, token-bucket. Everything else rides on the
// global middleware stack only.
const (
	loginRatePerSecond = 5
	loginBurst         = 10
)

func New(svc *auth.Service, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       svc,
		events:     stream.New(),
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.Handle("/v1/auth/login",
		RateLimit(http.HandlerFunc(a.handleLogin), loginBurst, loginRatePerSecond))
	a.mux.HandleFunc("/v1/auth/session", a.handleSession)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	a.mux.Handle("/v1/users", a.requireSession(http.HandlerFunc(a.handleUsers)))
	a.mux.Handle("/v1/users/", a.requireSession(http.HandlerFunc(a.handleUserScoped)))
	a.mux.Handle("/v1/activity", a.requireSession(http.HandlerFunc(a.handleActivity)))
	a.mux.Handle("/v1/activity/stream", a.requireSession(http.HandlerFunc(a.handleActivityStream)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
