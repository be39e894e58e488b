package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"municipal-portal/internal/audit"
	"municipal-portal/internal/auth"
	ledgerapp "municipal-portal/internal/ledger/application"
	ledger "municipal-portal/internal/ledger/domain"
	"municipal-portal/internal/logging"
	"municipal-portal/internal/observability/metrics"
)

var errBadRequest = errors.New("bad request")

// StatementHandler serves statement, year summary and balance reads.
type StatementHandler struct {
	assembler   *ledgerapp.Assembler
	calculator  *ledgerapp.Calculator
	years       *ledgerapp.YearSummarizer
	authorizer  auth.AccountAuthorizer
	auditLogger audit.Logger
	logger      logrus.FieldLogger
	location    *time.Location
	timeout     time.Duration
	now         func() time.Time
}

// HandlerOption configures a StatementHandler.
type HandlerOption func(*StatementHandler)

// WithLocation sets the billing timezone used to read period and as_of parameters.
func WithLocation(loc *time.Location) HandlerOption {
	return func(h *StatementHandler) {
		if loc != nil {
			h.location = loc
		}
	}
}

// WithTimeout bounds each request. Zero disables the bound.
func WithTimeout(d time.Duration) HandlerOption {
	return func(h *StatementHandler) { h.timeout = d }
}

// WithAuditLogger records successful reads and exports.
func WithAuditLogger(l audit.Logger) HandlerOption {
	return func(h *StatementHandler) { h.auditLogger = l }
}

// WithAuthorizer replaces the default OwnerOrStaff account check.
func WithAuthorizer(a auth.AccountAuthorizer) HandlerOption {
	return func(h *StatementHandler) {
		if a != nil {
			h.authorizer = a
		}
	}
}

// WithHandlerClock overrides the time source used for the default period.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *StatementHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewStatementHandler constructs a handler.
func NewStatementHandler(assembler *ledgerapp.Assembler, calculator *ledgerapp.Calculator, years *ledgerapp.YearSummarizer, logger logrus.FieldLogger, opts ...HandlerOption) (*StatementHandler, error) {
	if assembler == nil {
		return nil, errors.New("statement handler: nil assembler")
	}
	if calculator == nil {
		return nil, errors.New("statement handler: nil calculator")
	}
	if years == nil {
		return nil, errors.New("statement handler: nil year summarizer")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &StatementHandler{
		assembler:  assembler,
		calculator: calculator,
		years:      years,
		authorizer: auth.OwnerOrStaff{},
		logger:     logger,
		location:   time.UTC,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the routes on r.
func (h *StatementHandler) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/statements/{accountId}", h.handleStatement).Methods(http.MethodGet)
	api.HandleFunc("/statements/{accountId}/export.pdf", h.handleExportPDF).Methods(http.MethodGet)
	api.HandleFunc("/statements/{accountId}/export.xlsx", h.handleExportXLSX).Methods(http.MethodGet)
	api.HandleFunc("/statements/{accountId}/years/{year}", h.handleYearSummary).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{accountId}/balance", h.handleBalance).Methods(http.MethodGet)
}

func (h *StatementHandler) handleStatement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	stmt, err := h.assemble(ctx, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(stmt))
	h.logAudit(r, stmt.AccountID, "statement.view", map[string]any{
		"service":     stmt.Scope.Label(),
		"period":      stmt.Period.Token(),
		"fingerprint": stmt.Fingerprint,
	})
}

func (h *StatementHandler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, "pdf", contentTypePDF, BuildStatementPDF)
}

func (h *StatementHandler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, "xlsx", contentTypeXLSX, BuildStatementXLSX)
}

func (h *StatementHandler) handleExport(w http.ResponseWriter, r *http.Request, format, contentType string, render func(*ledger.Statement) ([]byte, error)) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveStatementExport(format, result, time.Since(start))
	}()

	ctx, cancel := h.requestContext(r)
	defer cancel()

	stmt, err := h.assemble(ctx, r)
	if err != nil {
		result = resultFor(err)
		h.respondError(w, r, err)
		return
	}
	data, err := render(stmt)
	if err != nil {
		result = metrics.ResultError
		h.logger.WithError(err).WithField("format", format).Error("statement export failed")
		writeError(w, http.StatusInternalServerError, "export_failed", "export "+format+" error")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("statement-%s-%s.%s", stmt.AccountID, stmt.Period.Token(), format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, stmt.AccountID, "statement.export", map[string]any{
		"format":      format,
		"service":     stmt.Scope.Label(),
		"period":      stmt.Period.Token(),
		"fingerprint": stmt.Fingerprint,
	})
}

func (h *StatementHandler) handleYearSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	vars := mux.Vars(r)
	accountID := vars["accountId"]
	if err := h.authorizer.AuthorizeAccount(ctx, accountID); err != nil {
		h.respondError(w, r, err)
		return
	}
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		h.respondError(w, r, fmt.Errorf("%w: year must be numeric, got %q", ledger.ErrInvalidPeriod, vars["year"]))
		return
	}
	summary, err := h.years.Summarize(ctx, accountID, year)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toYearSummaryDTO(summary))
	h.logAudit(r, accountID, "statement.year_summary", map[string]any{"year": year})
}

func (h *StatementHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	accountID := mux.Vars(r)["accountId"]
	if err := h.authorizer.AuthorizeAccount(ctx, accountID); err != nil {
		h.respondError(w, r, err)
		return
	}
	service, period, err := h.scopeParams(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	balance, err := h.calculator.AccountBalance(ctx, accountID, service, period)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountBalanceDTO{
		AccountID: accountID,
		Service:   service.Label(),
		Period:    period.Token(),
		Balance:   toBalanceDTO(balance),
	})
}

func (h *StatementHandler) assemble(ctx context.Context, r *http.Request) (*ledger.Statement, error) {
	accountID := mux.Vars(r)["accountId"]
	if err := h.authorizer.AuthorizeAccount(ctx, accountID); err != nil {
		return nil, err
	}
	service, period, err := h.scopeParams(r)
	if err != nil {
		return nil, err
	}
	asOf, err := h.parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		return nil, err
	}
	return h.assembler.Assemble(ctx, ledgerapp.AssembleRequest{
		AccountID: accountID,
		Service:   service,
		Period:    period,
		AsOf:      asOf,
	})
}

// scopeParams reads service and period. A missing period selects the current
// billing month.
func (h *StatementHandler) scopeParams(r *http.Request) (ledger.Service, ledger.Period, error) {
	query := r.URL.Query()
	service, err := ledger.ParseService(query.Get("service"))
	if err != nil {
		return "", ledger.Period{}, err
	}
	token := query.Get("period")
	if token == "" {
		return service, ledger.MonthOf(h.now().In(h.location)), nil
	}
	period, err := ledger.ParsePeriod(token, h.location)
	if err != nil {
		return "", ledger.Period{}, err
	}
	return service, period, nil
}

// parseAsOf accepts RFC3339 or a YYYY-MM-DD date, which means the end of that
// day in the billing timezone.
func (h *StatementHandler) parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, h.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of must be RFC3339 or YYYY-MM-DD, got %q", errBadRequest, raw)
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func (h *StatementHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *StatementHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	fields := logrus.Fields{
		"path":       r.URL.Path,
		"status":     status,
		"request_id": logging.RequestID(r.Context()),
	}
	switch {
	case errors.Is(err, ledger.ErrInconsistentLedger):
		h.logger.WithFields(fields).WithError(err).Error("inconsistent ledger")
	case status >= 500:
		h.logger.WithFields(fields).WithError(err).Warn("statement request failed")
	}
	message := err.Error()
	if status >= 500 {
		message = http.StatusText(status)
	}
	writeError(w, status, code, message)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrAccountForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found"
	case errors.Is(err, ledger.ErrInvalidPeriod):
		return http.StatusBadRequest, "invalid_period"
	case errors.Is(err, ledger.ErrUnknownService):
		return http.StatusBadRequest, "unknown_service"
	case errors.Is(err, ledger.ErrEmptyAccountID), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, ledger.ErrStoreUnavailable), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, ledger.ErrInconsistentLedger):
		return http.StatusInternalServerError, "inconsistent_ledger"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func resultFor(err error) string {
	if errors.Is(err, ledger.ErrInconsistentLedger) {
		return metrics.ResultInconsistent
	}
	return metrics.ResultError
}

func (h *StatementHandler) logAudit(r *http.Request, accountID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		AccountNumber: accountID,
		Actor:         auth.SubjectFromContext(r.Context()),
		Role:          string(auth.RoleFromContext(r.Context())),
		Action:        action,
		ResourceType:  "statement",
		ResourceID:    accountID,
		Metadata:      payload,
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		h.logger.WithError(err).WithField("action", action).Warn("audit log failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}
