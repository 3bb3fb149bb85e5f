package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nutanix-tools/darksite-metering/pkg/log"
	"github.com/nutanix-tools/darksite-metering/pkg/metrics"
)

const gracefulShutdownTimeout = 5 * time.Second

// Server exposes the price list over REST plus /metrics and /health.
type Server struct {
	store   *Store
	address string
	mw      *metrics.Middleware
}

func NewServer(store *Store, address string) *Server {
	return &Server{
		store:   store,
		address: address,
		mw:      metrics.NewMiddleware("pricing"),
	}
}

// Routes builds the router. Split out from Run so tests can drive handlers
// through httptest without binding a port.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(log.Logger(zap.L(), "router"))
	router.Use(s.mw.Handler)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/pricing", s.handleGetPricing)
		r.Get("/active-rates", s.handleActiveRates)
		r.Post("/pricing/{catalog}", s.handleAddRate)
		r.Delete("/pricing/{catalog}/{code}", s.handleDeleteRate)
		r.Post("/pricing/{catalog}/{code}/activate", s.handleActivateRate)
		r.Post("/pricing/import", s.handleImportCSV)
		r.Get("/pricing/export", s.handleExport)
	})

	return router
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.mw.MustRegisterDefault()
	srv := &http.Server{Addr: s.address, Handler: s.Routes()}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Named("pricing").Infof("serving pricing API on %s", s.address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type priceListReply struct {
	*PriceList
}

func (p priceListReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type activeRatesReply struct {
	Compute rateReply `json:"nci"`
	Files   rateReply `json:"nus"`
}

type rateReply struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	HourlyRate float64 `json:"hourly_rate"`
	Unit       string  `json:"unit"`
}

func (a activeRatesReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type importReply struct {
	Imported int `json:"imported"`
}

func (i importReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type addRateRequest struct {
	Code string `json:"code"`
	Rate
}

func catalogParam(r *http.Request) (Catalog, error) {
	c := Catalog(chi.URLParam(r, "catalog"))
	if c != CatalogCompute && c != CatalogFiles {
		return "", errors.Errorf("unknown catalog %q", c)
	}
	return c, nil
}

func (s *Server) handleGetPricing(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = render.Render(w, r, priceListReply{list})
}

func (s *Server) handleActiveRates(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	reply := activeRatesReply{
		Compute: rateReply{Name: "Not Set"},
		Files:   rateReply{Name: "Not Set"},
	}
	if rate, ok := list.ActiveRate(CatalogCompute); ok {
		reply.Compute = rateReply{Code: list.Active.Compute, Name: rate.Name, HourlyRate: rate.HourlyRate, Unit: rate.Unit}
	}
	if rate, ok := list.ActiveRate(CatalogFiles); ok {
		reply.Files = rateReply{Code: list.Active.Files, Name: rate.Name, HourlyRate: rate.HourlyRate, Unit: rate.Unit}
	}
	_ = render.Render(w, r, reply)
}

func (s *Server) handleAddRate(w http.ResponseWriter, r *http.Request) {
	catalog, err := catalogParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := addRateRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		http.Error(w, "product code is required", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = req.Code
	}

	if err := s.store.Add(catalog, req.Code, req.Rate); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	zap.S().Named("pricing").Infof("added rate %s/%s", catalog, req.Code)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDeleteRate(w http.ResponseWriter, r *http.Request) {
	catalog, err := catalogParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code := chi.URLParam(r, "code")

	switch err := s.store.Delete(catalog, code); {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		zap.S().Named("pricing").Infof("deleted rate %s/%s", catalog, code)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleActivateRate(w http.ResponseWriter, r *http.Request) {
	catalog, err := catalogParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code := chi.URLParam(r, "code")

	switch err := s.store.SetActive(catalog, code); {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		zap.S().Named("pricing").Infof("activated rate %s/%s", catalog, code)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.ImportCSV(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	zap.S().Named("pricing").Infof("imported %d rates from CSV", count)
	_ = render.Render(w, r, importReply{Imported: count})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("format") {
	case "", "json":
		list, err := s.store.Load()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="pricing.json"`)
		_ = render.Render(w, r, priceListReply{list})
	case "csv":
		buf := &bytes.Buffer{}
		if err := s.store.ExportCSV(buf); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="pricing.csv"`)
		_, _ = w.Write(buf.Bytes())
	default:
		http.Error(w, "unknown export format", http.StatusBadRequest)
	}
}
