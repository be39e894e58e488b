package interfaces

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	ledgerapp "municipal-portal/internal/ledger/application"
	ledger "municipal-portal/internal/ledger/domain"
)

// SweepHandler lets operators trigger a consistency sweep on demand.
type SweepHandler struct {
	sweep    *ledgerapp.ConsistencySweep
	logger   logrus.FieldLogger
	location *time.Location
}

type sweepReportDTO struct {
	Period       string   `json:"period"`
	Checked      int      `json:"checked"`
	Inconsistent []string `json:"inconsistent"`
	Failed       []string `json:"failed"`
}

// NewSweepHandler constructs a handler.
func NewSweepHandler(sweep *ledgerapp.ConsistencySweep, logger logrus.FieldLogger, loc *time.Location) (*SweepHandler, error) {
	if sweep == nil {
		return nil, errors.New("sweep handler: nil sweep")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SweepHandler{sweep: sweep, logger: logger, location: loc}, nil
}

// Register mounts POST /api/v1/admin/consistency-sweep.
func (h *SweepHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/admin/consistency-sweep", h.handleRun).Methods(http.MethodPost)
}

func (h *SweepHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	var (
		report ledgerapp.SweepReport
		err    error
	)
	if token := r.URL.Query().Get("period"); token != "" {
		period, perr := ledger.ParsePeriod(token, h.location)
		if perr != nil {
			status, code := errorStatus(perr)
			writeError(w, status, code, perr.Error())
			return
		}
		report, err = h.sweep.RunPeriod(r.Context(), period)
	} else {
		report, err = h.sweep.Run(r.Context())
	}
	if err != nil {
		status, code := errorStatus(err)
		h.logger.WithError(err).Warn("consistency sweep request failed")
		writeError(w, status, code, http.StatusText(status))
		return
	}

	out := sweepReportDTO{
		Period:       report.Period.Token(),
		Checked:      report.Checked,
		Inconsistent: report.Inconsistent,
		Failed:       report.Failed,
	}
	if out.Inconsistent == nil {
		out.Inconsistent = []string{}
	}
	if out.Failed == nil {
		out.Failed = []string{}
	}
	writeJSON(w, http.StatusOK, out)
}
