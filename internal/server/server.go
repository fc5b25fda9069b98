package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func NewRouter(h *Handlers, health http.HandlerFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.HandleFunc("/api/sensor-data", h.PostSensorData).Methods(http.MethodPost)
	r.HandleFunc("/api/latest-data", h.GetLatestData).Methods(http.MethodGet)
	r.HandleFunc("/api/alerts", h.GetAlerts).Methods(http.MethodGet)
	r.HandleFunc("/api/devices", h.GetDevices).Methods(http.MethodGet)
	r.HandleFunc("/api/statistics", h.GetStatistics).Methods(http.MethodGet)
	r.HandleFunc("/api/cloud/status", h.GetCloudStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/health", health).Methods(http.MethodGet)
	return r
}

func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
