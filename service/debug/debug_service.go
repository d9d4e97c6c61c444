// Package debug serves the internal debugging port: pprof, expvars, the
// go-metrics registry, process health, and a JSON dump of the controller's
// current scores and periods.
package debug

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"strconv"
	"sync"
	"syscall"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/rcrowley/go-metrics/exp"

	"github.com/tieredmem/thermostat/collect"
	"github.com/tieredmem/thermostat/config"
	"github.com/tieredmem/thermostat/internal/health"
	"github.com/tieredmem/thermostat/logger"
)

const fallbackAddr = "localhost:6060"

// StateSource is anything that can report the controller's current state.
type StateSource interface {
	State() collect.State
}

type DebugService struct {
	Config config.Config   `inject:""`
	Logger logger.Logger   `inject:""`
	Health health.Reporter `inject:""`
	State  StateSource     `inject:""`

	mux     *http.ServeMux
	urls    []string
	expVars map[string]interface{}
	mutex   sync.RWMutex
}

func (s *DebugService) Start() error {
	s.expVars = make(map[string]interface{})
	s.mux = http.NewServeMux()

	// on the mux but not in the index
	s.mux.HandleFunc("/", s.indexHandler)

	s.HandleFunc("/debug/pprof/", pprof.Index)
	s.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	s.HandleFunc("/debug/pprof/profile", pprof.Profile)
	s.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	s.HandleFunc("/debug/pprof/trace", pprof.Trace)
	s.HandleFunc("/debug/vars", s.expvarHandler)
	s.HandleFunc("/debug/state", s.stateHandler)
	s.HandleFunc("/alive", s.healthHandler(s.Health.IsAlive))
	s.HandleFunc("/ready", s.healthHandler(s.Health.IsReady))
	s.Handle("/debug/metrics", exp.ExpHandler(gometrics.DefaultRegistry))
	s.Publish("cmdline", os.Args)
	s.Publish("memstats", Func(memstats))

	go s.serve()
	return nil
}

func (s *DebugService) serve() {
	if configAddr := s.Config.GetDebugServiceAddr(); configAddr != "" {
		s.Logger.Info().WithField("addr", configAddr).Logf("debug service listening")
		err := http.ListenAndServe(configAddr, s.mux)
		s.Logger.Warn().WithField("error", err.Error()).Logf("debug http server error")
		return
	}

	// no address configured: walk up from the fallback port so several
	// processes on one host can each get a debug service
	host, portStr, _ := net.SplitHostPort(fallbackAddr)
	port, _ := strconv.Atoi(portStr)
	for i := 0; i < 10; i++ {
		addr := net.JoinHostPort(host, fmt.Sprint(port+i))
		s.Logger.Info().WithField("addr", addr).Logf("debug service listening")

		err := http.ListenAndServe(addr, s.mux)
		s.Logger.Warn().WithField("error", err.Error()).Logf("debug http server error")

		if opErr, ok := err.(*net.OpError); ok {
			if sysErr, ok := opErr.Err.(*os.SyscallError); ok && sysErr.Err == syscall.EADDRINUSE {
				continue
			}
		}
		break
	}
}

// Use Handle and HandleFunc to add new services on the internal debugging port.
func (s *DebugService) Handle(pattern string, handler http.Handler) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.urls = append(s.urls, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *DebugService) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.urls = append(s.urls, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Publish an expvar at /debug/vars, possibly using Func
func (s *DebugService) Publish(name string, v interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, existing := s.expVars[name]; existing {
		panic("reuse of exported var name: " + name)
	}
	s.expVars[name] = v
}

func (s *DebugService) indexHandler(w http.ResponseWriter, req *http.Request) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if err := indexTmpl.Execute(w, s.urls); err != nil {
		s.Logger.Warn().WithField("error", err.Error()).Logf("error rendering debug index")
	}
}

var indexTmpl = template.Must(template.New("index").Parse(`
<html>
<head>
<title>Debug Index</title>
</head>
<body>
<h2>Index</h2>
<table>
{{range .}}
<tr><td><a href="{{.}}?debug=1">{{.}}</a>
{{end}}
</table>
</body>
</html>
`))

func (s *DebugService) expvarHandler(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	values := make(map[string]interface{}, len(s.expVars))
	for k, v := range s.expVars {
		if f, ok := v.(Func); ok {
			v = f()
		}
		values[k] = v
	}
	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		s.Logger.Warn().WithField("error", err.Error()).Logf("error encoding expvars")
	}
	w.Write(b)
}

// stateHandler dumps the latest scores and the committed periods for every
// event class.
func (s *DebugService) stateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	b, err := json.MarshalIndent(s.State.State(), "", "  ")
	if err != nil {
		s.Logger.Warn().WithField("error", err.Error()).Logf("error encoding controller state")
		http.Error(w, "encoding error", http.StatusInternalServerError)
		return
	}
	w.Write(b)
}

func (s *DebugService) healthHandler(check func() bool) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if !check() {
			http.Error(w, "no", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	}
}

func memstats() interface{} {
	stats := new(runtime.MemStats)
	runtime.ReadMemStats(stats)
	return *stats
}

type Func func() interface{}
