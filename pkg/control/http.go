package control

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/acme/autocert"
)

// StartHTTPServer serves the status endpoints until ctx is done. An empty
// server type disables the server.
func (ctrl *Control) StartHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ctrl.HTTPAddress,
		Handler: logRequest(ctrl.log, ctrl.httpMux),
	}

	var serve func() error
	switch ctrl.HTTPServerType {
	case "":
		return nil
	case "acme":
		ctrl.log.Infof("Starting ACME http server on %s:443", ctrl.HTTPSHostname)
		serve = func() error {
			return srv.Serve(autocert.NewListener(ctrl.HTTPSHostname))
		}
	case "https":
		ctrl.log.Infof("Starting https server on %s", ctrl.HTTPAddress)
		srv.TLSConfig = tlsConfig()
		srv.TLSNextProto = make(map[string]func(*http.Server, *tls.Conn, http.Handler), 0)
		serve = func() error {
			return srv.ListenAndServeTLS(ctrl.HTTPSCert, ctrl.HTTPSKey)
		}
	case "http":
		ctrl.log.Infof("Starting http server on %s", ctrl.HTTPAddress)
		serve = srv.ListenAndServe
	default:
		return errors.Wrapf(ErrUnknownServerType, "http_server_type %q", ctrl.HTTPServerType)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			srv.Close()
		case <-done:
		}
	}()

	if err := serve(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "status server")
	}
	return nil
}

func (ctrl *Control) RegisterHandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	ctrl.httpMux.HandleFunc(pattern, handler)
}

func (ctrl *Control) HTTPServerURL() string {
	var protocol string
	var host string
	if ctrl.HTTPServerType == "acme" || ctrl.HTTPServerType == "https" {
		protocol = "https"
		host = ctrl.HTTPSHostname
	} else {
		protocol = "http"
		host = ctrl.HTTPAddress
	}

	return fmt.Sprintf("%s://%s", protocol, host)
}

func (ctrl *Control) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ctrl.Status()); err != nil {
		ctrl.log.WithError(err).Warn("Failed writing status")
	}
}

func (ctrl *Control) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !ctrl.service.Started() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func tlsConfig() *tls.Config {
	return &tls.Config{
		MinVersion:       tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{tls.CurveP521, tls.CurveP384, tls.CurveP256},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
			tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_RSA_WITH_AES_256_CBC_SHA,
		},
	}
}

func logRequest(log logrus.FieldLogger, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("%s %s %s", r.RemoteAddr, r.Method, r.URL)
		handler.ServeHTTP(w, r)
	})
}
