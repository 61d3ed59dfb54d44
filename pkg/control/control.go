package control

import (
	"net/http"
	"sort"
	"sync"

	"github.com/Glimesh/ndiio/config"
	"github.com/sirupsen/logrus"
)

// StatusFunc reports the current state of one component for the status
// server.
type StatusFunc func() interface{}

// Control owns the process-wide pieces every input and output shares:
// the connection service, the main-context dispatcher and the status
// server.
type Control struct {
	HTTPServerType string
	HTTPAddress    string
	HTTPSHostname  string
	HTTPSCert      string
	HTTPSKey       string

	service    *ConnectionService
	dispatcher *Dispatcher

	httpMux    *http.ServeMux
	statusMu   sync.Mutex
	status     map[string]map[string]StatusFunc
	thumbnails map[string]ThumbnailFunc

	log logrus.FieldLogger
}

func New(cfg config.Config, log logrus.FieldLogger) *Control {
	broadcast := BroadcastConfiguration{}
	broadcast.FrameSize.X = cfg.Broadcast.Width
	broadcast.FrameSize.Y = cfg.Broadcast.Height
	broadcast.FrameRate.Num = cfg.Broadcast.FrameRateNum
	broadcast.FrameRate.Den = cfg.Broadcast.FrameRateDen

	service := NewConnectionService(cfg.Broadcast.Name, broadcast)
	service.SetLogger(log.WithField("control", "service"))

	ctrl := &Control{
		HTTPServerType: cfg.Control.HTTPServerType,
		HTTPAddress:    cfg.Control.HTTPAddress,
		HTTPSHostname:  cfg.Control.HTTPSHostname,
		HTTPSCert:      cfg.Control.HTTPSCert,
		HTTPSKey:       cfg.Control.HTTPSKey,

		service:    service,
		dispatcher: NewDispatcher(),
		httpMux:    http.NewServeMux(),
		status:     make(map[string]map[string]StatusFunc),
		thumbnails: make(map[string]ThumbnailFunc),
		log:        log,
	}
	ctrl.httpMux.HandleFunc("/status", ctrl.handleStatus)
	ctrl.httpMux.HandleFunc("/healthz", ctrl.handleHealth)
	ctrl.httpMux.HandleFunc("/thumbnail/", ctrl.handleThumbnail)
	return ctrl
}

func (ctrl *Control) Service() *ConnectionService {
	return ctrl.service
}

func (ctrl *Control) Dispatcher() *Dispatcher {
	return ctrl.dispatcher
}

func (ctrl *Control) Logger() logrus.FieldLogger {
	return ctrl.log
}

// RegisterStatus publishes fn under kind/name on the status server.
func (ctrl *Control) RegisterStatus(kind, name string, fn StatusFunc) {
	ctrl.statusMu.Lock()
	defer ctrl.statusMu.Unlock()
	if ctrl.status[kind] == nil {
		ctrl.status[kind] = make(map[string]StatusFunc)
	}
	ctrl.status[kind][name] = fn
}

func (ctrl *Control) UnregisterStatus(kind, name string) {
	ctrl.statusMu.Lock()
	defer ctrl.statusMu.Unlock()
	delete(ctrl.status[kind], name)
}

// Status collects every registered report, keyed by kind then name.
func (ctrl *Control) Status() map[string]map[string]interface{} {
	ctrl.statusMu.Lock()
	funcs := make(map[string]map[string]StatusFunc, len(ctrl.status))
	for kind, named := range ctrl.status {
		funcs[kind] = make(map[string]StatusFunc, len(named))
		for name, fn := range named {
			funcs[kind][name] = fn
		}
	}
	ctrl.statusMu.Unlock()

	out := make(map[string]map[string]interface{}, len(funcs))
	for kind, named := range funcs {
		out[kind] = make(map[string]interface{}, len(named))
		for name, fn := range named {
			out[kind][name] = fn()
		}
	}
	return out
}

// StatusNames lists the registered names of kind in order.
func (ctrl *Control) StatusNames(kind string) []string {
	ctrl.statusMu.Lock()
	defer ctrl.statusMu.Unlock()
	names := make([]string, 0, len(ctrl.status[kind]))
	for name := range ctrl.status[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown stops the connection service and runs whatever the dispatcher
// still holds.
func (ctrl *Control) Shutdown() {
	ctrl.service.Shutdown()
	ctrl.dispatcher.Drain()
}
