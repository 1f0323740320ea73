package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/model"
	"github.com/sells-group/segment-cli/internal/pipeline"
	"github.com/sells-group/segment-cli/internal/resilience"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for segmentation research requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		p, breakers, err := newPipeline(cfg)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(p, breakers),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// segmentRequest is the POST /v1/segment request body.
type segmentRequest struct {
	CompanyName       string   `json:"company_name"`
	Industry          string   `json:"industry"`
	BusinessModel     string   `json:"business_model"`
	Description       string   `json:"description"`
	TargetDescription string   `json:"target_description"`
	Geography         string   `json:"geography"`
	KnownCompetitors  []string `json:"known_competitors"`
}

func newRouter(p *pipeline.Pipeline, breakers *resilience.BreakerSet) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		providers := map[string]string{}
		for name, state := range breakers.States() {
			providers[name] = state.String()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"providers": providers,
		})
	})

	r.Post("/v1/breakers/reset", func(w http.ResponseWriter, req *http.Request) {
		for name := range breakers.States() {
			breakers.Get(name).Reset()
		}
		zap.L().Info("provider breakers reset")
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	})

	r.Post("/v1/segment", func(w http.ResponseWriter, req *http.Request) {
		var body segmentRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(body.Industry) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "industry is required"})
			return
		}

		input := model.BusinessInput{
			CompanyName:       body.CompanyName,
			Industry:          body.Industry,
			BusinessModel:     model.ParseBusinessModel(body.BusinessModel),
			Description:       body.Description,
			TargetDescription: body.TargetDescription,
			Geography:         body.Geography,
			KnownCompetitors:  body.KnownCompetitors,
		}

		result, err := p.Run(req.Context(), input, nil)
		if err != nil {
			zap.L().Error("segment request failed",
				zap.String("industry", input.Industry),
				zap.Error(err),
			)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "run cancelled"})
			return
		}

		zap.L().Info("segment request complete",
			zap.String("run_id", result.RunID),
			zap.Bool("degraded", result.Degraded()),
		)
		writeJSON(w, http.StatusOK, result)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
