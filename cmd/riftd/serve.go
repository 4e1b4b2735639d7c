package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/rift/internal/admin"
	"github.com/oriys/rift/internal/config"
	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/flowstore"
	"github.com/oriys/rift/internal/imposter"
	"github.com/oriys/rift/internal/logging"
	"github.com/oriys/rift/internal/metrics"
	"github.com/oriys/rift/internal/observability"
	"github.com/oriys/rift/internal/proxy"
	"github.com/oriys/rift/internal/scriptpool"
)

func serveCmd() *cobra.Command {
	var (
		listenPort int
		adminAddr  string
		upstream   string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fault-injection proxy, imposter server, and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if cmd.Flags().Changed("listen-port") {
				cfg.Listen.Port = listenPort
			}
			if cmd.Flags().Changed("admin-addr") {
				cfg.Admin.Addr = adminAddr
			}
			if cmd.Flags().Changed("upstream") {
				cfg.Upstream = upstream
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Observability.Logging.Level = logLevel
			}

			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			if err := observability.Init(context.Background(), cfg.Observability.Tracing); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, nil)
			}

			httpClient := &http.Client{
				Timeout: cfg.ConnectionPool.ResponseTimeout,
				Transport: &http.Transport{
					MaxIdleConns:        cfg.ConnectionPool.MaxIdleConns,
					MaxIdleConnsPerHost: cfg.ConnectionPool.MaxIdleConnsPerHost,
					IdleConnTimeout:     cfg.ConnectionPool.IdleConnTimeout,
					DialContext: (&net.Dialer{
						Timeout: cfg.ConnectionPool.DialTimeout,
					}).DialContext,
				},
			}

			flowStore, err := flowstore.New(cfg.FlowState)
			if err != nil {
				return fmt.Errorf("init flow state: %w", err)
			}

			pool := scriptpool.New(scriptpool.Config{
				Workers:    cfg.ScriptPool.Workers,
				QueueSize:  cfg.ScriptPool.QueueSize,
				JobTimeout: time.Duration(cfg.ScriptPool.TimeoutMs) * time.Millisecond,
			})
			pool.Start()
			defer pool.Stop()

			manager := imposter.NewManager(pool, flowStore, httpClient)
			defer manager.DeleteAll()

			proxyHandler, err := proxy.New(cfg, pool, flowStore, httpClient)
			if err != nil {
				return fmt.Errorf("init fault-injection proxy: %w", err)
			}
			if err := proxyHandler.LoadPersistedStore(cfg.Recording.PersistPath); err != nil {
				logging.Op().Warn("failed to load persisted recordings, starting empty", "path", cfg.Recording.PersistPath, "error", err)
			}
			defer func() {
				if cfg.Recording.PersistPath == "" {
					return
				}
				if err := proxyHandler.Store().Save(cfg.Recording.PersistPath); err != nil {
					logging.Op().Error("failed to persist recordings", "path", cfg.Recording.PersistPath, "error", err)
				}
			}()

			adminHandler := admin.New(manager, proxyHandler, cfg, configFile)
			adminMux := http.NewServeMux()
			adminHandler.RegisterRoutes(adminMux)
			adminServer := &http.Server{Addr: cfg.Admin.Addr, Handler: adminMux}

			proxyServer := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Listen.Port),
				Handler:      proxyHandler,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 2)
			go func() {
				logging.Op().Info("admin API listening", "addr", cfg.Admin.Addr)
				if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- fmt.Errorf("admin server: %w", err)
				}
			}()
			go func() {
				logging.Op().Info("fault-injection proxy listening", "addr", proxyServer.Addr, "protocol", cfg.Listen.Protocol)
				var err error
				if domain.Protocol(cfg.Listen.Protocol) == domain.ProtocolHTTPS {
					err = proxyServer.ListenAndServeTLS(cfg.Listen.TLS.CertPath, cfg.Listen.TLS.KeyPath)
				} else {
					err = proxyServer.ListenAndServe()
				}
				if err != nil && err != http.ErrServerClosed {
					errCh <- fmt.Errorf("fault-injection proxy server: %w", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logging.Op().Info("shutdown signal received", "signal", sig.String())
			case err := <-errCh:
				logging.Op().Error("server failed, shutting down", "error", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = adminServer.Shutdown(shutdownCtx)
			_ = proxyServer.Shutdown(shutdownCtx)

			return nil
		},
	}

	cmd.Flags().IntVar(&listenPort, "listen-port", 0, "fault-injection proxy listen port")
	cmd.Flags().StringVar(&adminAddr, "admin-addr", "", "admin API bind address")
	cmd.Flags().StringVar(&upstream, "upstream", "", "default upstream URL")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}
