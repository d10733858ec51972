// Package transport exposes the scan cycle to external triggers.
package transport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/goodnatureofminers/ledgerscan/internal/model"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const healthyBody = "OK"

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Scanner interface {
		Scan(ctx context.Context) (model.ScanResult, error)
	}
)

// ScanHandler answers trigger and liveness requests with plain text.
type ScanHandler struct {
	scanner Scanner
	logger  *zap.Logger
}

// NewScanHandler returns a ScanHandler running cycles on scanner.
func NewScanHandler(scanner Scanner, logger *zap.Logger) (*ScanHandler, error) {
	if scanner == nil {
		return nil, errors.New("scanner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanHandler{scanner: scanner, logger: logger}, nil
}

// Router routes /scan and /health_check.
func (h *ScanHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/scan", h.HandleScan).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/health_check", h.HandleHealth).Methods(http.MethodGet)
	return r
}

// HandleScan runs one cycle. The cycle is detached from the request context so
// a client disconnect does not abandon a block halfway.
func (h *ScanHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	res, err := h.scanner.Scan(context.WithoutCancel(r.Context()))
	switch {
	case err != nil:
		h.logger.Error("scan failed", zap.Error(err), zap.Int64("reached", res.Reached))
		writeText(w, http.StatusInternalServerError, "scan failed: "+err.Error())
	case res.Skipped():
		writeText(w, http.StatusConflict, res.String())
	default:
		if res.HaltErr != nil {
			h.logger.Warn("scan halted", zap.Error(res.HaltErr), zap.Int64("reached", res.Reached))
		}
		writeText(w, http.StatusOK, res.String())
	}
}

// HandleHealth reports liveness without doing any work.
func (h *ScanHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, healthyBody)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
