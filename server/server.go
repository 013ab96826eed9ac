package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"

	"github.com/serisow/vibeveed/handlers"
)

type Config struct {
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func SetupRoutes(videoHandler *handlers.VideoHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", handlers.Home).Methods("GET")
	r.HandleFunc("/health", handlers.Health).Methods("GET")
	r.HandleFunc("/process-video", videoHandler.ProcessVideo).Methods("POST")
	r.HandleFunc("/runs/{id}", videoHandler.GetRun).Methods("GET")

	return r
}

// ServeProduction serves HTTPS on :443 with certificates from Let's Encrypt
// and answers ACME challenges on :80. It blocks until ctx is cancelled.
func ServeProduction(ctx context.Context, n *negroni.Negroni, cfg Config) {
	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	// autocertManager.HTTPHandler(nil) answers "http-01" challenges and
	// redirects everything else to HTTPS.
	go func() {
		srv := &http.Server{
			Addr:         ":80",
			Handler:      autocertManager.HTTPHandler(nil),
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		err := srv.ListenAndServe()
		log.Fatal(err)
	}()

	tlsConfig := &tls.Config{
		GetCertificate:   autocertManager.GetCertificate,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}

	srv := &http.Server{
		Addr:         ":443",
		Handler:      n,
		TLSConfig:    tlsConfig,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serve(ctx, srv, func() error {
		return srv.ListenAndServeTLS("", "") // Key and cert provided automatically by autocert.
	})
}

// ServeDevelopment serves plain HTTP on cfg.HTTPPort until ctx is cancelled.
func ServeDevelopment(ctx context.Context, n *negroni.Negroni, cfg Config) {
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      n,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	serve(ctx, srv, srv.ListenAndServe)
}

func serve(ctx context.Context, srv *http.Server, listen func() error) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- listen()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	case <-ctx.Done():
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}
}
