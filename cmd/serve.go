package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/icp"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/tracking"
)

var (
	servePort    int
	serveICPFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server for tracking events and discovery requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.Store.Migrate(ctx); err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/webhook/events", func(w http.ResponseWriter, req *http.Request) {
			var ev tracking.Event
			if err := json.NewDecoder(req.Body).Decode(&ev); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if ev.MessageID == "" {
				http.Error(w, `{"error":"message_id is required"}`, http.StatusBadRequest)
				return
			}

			res, err := e.Tracker.HandleEvent(req.Context(), ev)
			if err != nil {
				zap.L().Warn("tracking event rejected",
					zap.String("type", ev.Type),
					zap.String("message_id", ev.MessageID),
					zap.Error(err))
				http.Error(w, `{"error":"event not processed"}`, http.StatusUnprocessableEntity)
				return
			}
			writeJSON(w, http.StatusOK, res)
		})

		r.Post("/webhook/discover", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				model.JobRequest
				ICPFile string `json:"icp_file"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if len(body.Locations) == 0 || len(body.Industries) == 0 {
				http.Error(w, `{"error":"locations and industries are required"}`, http.StatusBadRequest)
				return
			}

			icpPath := body.ICPFile
			if icpPath == "" {
				icpPath = serveICPFile
			}
			profile, err := icp.LoadProfile(icpPath)
			if err != nil {
				http.Error(w, `{"error":"icp profile not loadable"}`, http.StatusBadRequest)
				return
			}

			// Run discovery asynchronously; progress lands in the log.
			go func() {
				res, err := e.Coordinator.Run(ctx, body.JobRequest, profile, cfg.Discovery.MinICPScore)
				if err != nil {
					zap.L().Error("webhook discovery failed",
						zap.String("client_id", body.ClientID),
						zap.Error(err))
					return
				}
				zap.L().Info("webhook discovery complete",
					zap.String("job_id", res.Job.ID),
					zap.Int("prospects", len(res.Prospects)))
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			// Drain in-flight requests on a fresh context; the signal
			// context is already cancelled.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveICPFile, "icp", "icp.yaml", "default ICP profile for webhook discovery")
	rootCmd.AddCommand(serveCmd)
}
