package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/application/service"
	"github.com/owine/nut-cgi/src/config"
	"github.com/owine/nut-cgi/src/domain"
	"github.com/owine/nut-cgi/src/domain/repository"
)

// Web serves the point-in-time status API. There is no session or
// login machinery: everything exposed here is read-only diagnostics.
type Web struct {
	Listen string

	Logger                zerolog.Logger
	HealthService         service.HealthService
	ReleaseAttemptService service.ReleaseAttemptService
	Monitoring            *config.Monitoring
}

func (self *Web) Router() *mux.Router {
	muxRouter := mux.NewRouter().StrictSlash(true).UseEncodedPath()
	muxRouter.NotFoundHandler = http.NotFoundHandler()

	muxRouter.HandleFunc("/api/health", self.ApiHealthGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/api/release", self.ApiReleaseGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/api/release/{id}", self.ApiReleaseIdGet).Methods(http.MethodGet)
	if self.Monitoring != nil {
		muxRouter.Handle("/metrics", promhttp.HandlerFor(self.Monitoring.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return muxRouter
}

func (self *Web) Start(ctx context.Context) error {
	self.Logger.Info().Str("listen", self.Listen).Msg("Starting")

	server := &http.Server{Addr: self.Listen, Handler: self.Router()}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			self.Logger.Err(err).Msgf("Failed to start web server on %s", self.Listen)
		}
	}()

	<-ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		self.Logger.Err(err).Msg("Failed to stop web server")
	}

	return nil
}

// ApiHealthGet evaluates readiness on demand. The HTTP status mirrors
// the report so orchestrators can use this endpoint directly: 200 when
// healthy, 503 otherwise.
func (self *Web) ApiHealthGet(w http.ResponseWriter, req *http.Request) {
	mode := domain.ParseMode(req.URL.Query().Get("mode"))

	report := self.HealthService.Evaluate(req.Context(), mode)

	status := http.StatusOK
	if report.Overall != domain.Healthy {
		status = http.StatusServiceUnavailable
	}
	self.json(w, report, status)
}

func (self *Web) ApiReleaseGet(w http.ResponseWriter, req *http.Request) {
	if self.ReleaseAttemptService == nil {
		self.Error(w, HandlerError{errors.New("No release ledger configured"), http.StatusServiceUnavailable})
		return
	}

	page, err := getPage(req)
	if err != nil {
		self.ClientError(w, err)
		return
	}

	if attempts, err := self.ReleaseAttemptService.GetAll(page); err != nil {
		self.ServerError(w, errors.WithMessage(err, "Failed to get release attempts"))
	} else {
		self.json(w, map[string]any{
			"attempts": attempts,
			"page":     page,
		}, http.StatusOK)
	}
}

func (self *Web) ApiReleaseIdGet(w http.ResponseWriter, req *http.Request) {
	if self.ReleaseAttemptService == nil {
		self.Error(w, HandlerError{errors.New("No release ledger configured"), http.StatusServiceUnavailable})
		return
	}

	vars := mux.Vars(req)
	if id, err := uuid.Parse(vars["id"]); err != nil {
		self.ClientError(w, errors.WithMessage(err, "Failed to parse id"))
	} else if attempt, err := self.ReleaseAttemptService.GetById(id); err != nil {
		self.Error(w, HandlerError{errors.WithMessage(err, "Failed to get release attempt"), http.StatusNotFound})
	} else {
		self.json(w, attempt, http.StatusOK)
	}
}

func getPage(req *http.Request) (*repository.Page, error) {
	page := repository.Page{Limit: 10}

	query := req.URL.Query()
	if str := query.Get("offset"); str != "" {
		if offset, err := strconv.Atoi(str); err != nil {
			return nil, errors.WithMessage(err, "Failed to parse offset")
		} else {
			page.Offset = offset
		}
	}
	if str := query.Get("limit"); str != "" {
		if limit, err := strconv.Atoi(str); err != nil {
			return nil, errors.WithMessage(err, "Failed to parse limit")
		} else {
			page.Limit = limit
		}
	}

	if page.Limit <= 0 {
		return nil, errors.Errorf("Limit %d is not positive", page.Limit)
	}
	if page.Offset < 0 {
		return nil, errors.Errorf("Offset %d is negative", page.Offset)
	}

	return &page, nil
}

type HandlerError struct {
	error
	StatusCode int
}

func (self HandlerError) HasError() bool {
	return self.error != nil
}

func (self *Web) ServerError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusInternalServerError})
}

func (self *Web) ClientError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusBadRequest})
}

func (self *Web) Error(w http.ResponseWriter, err error) {
	status := 500

	if handlerErr, ok := err.(HandlerError); ok {
		status = handlerErr.StatusCode
		if !handlerErr.HasError() {
			err = nil
		}
	}

	var e *zerolog.Event
	if status >= 500 {
		e = self.Logger.Error()
	} else {
		e = self.Logger.Debug()
	}
	e.Int("status", status).Msg("Handler error")

	var msg string
	if err != nil {
		msg = err.Error()
	}

	http.Error(w, msg, status)
}

func (self *Web) json(w http.ResponseWriter, obj any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		self.ServerError(w, err)
		return
	}
}
