/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/cubattendance/attendance/api"
	"github.com/cubattendance/attendance/config"
	trace "github.com/cubattendance/attendance/internal/traces"
)

/*
serveTLS starts an HTTPS server using CertMagic for automatic certificate management.
Without a configured domain the certificate is managed for localhost.
*/
func serveTLS(r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: "certmagic"}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		log.Println("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(context.Background(), domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}

	log.Printf("Starting HTTPS server on %s\n", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTPS server: %v", err)
	}
	return nil
}

func initializeRouter(a *attendanceInstance) (*gin.Engine, error) {
	server := api.NewAPI(a.attendance)
	if server == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return server.Router(), nil
}

func initializeTracing(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	shutdown, err := trace.SetupOTelSDK(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(router, cfg)
	}
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// initializeObservability installs the tracer provider when telemetry is
// enabled. The returned shutdown is never nil.
func initializeObservability(ctx context.Context, cfg *config.Configuration, serviceName string) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}
	return initializeTracing(ctx, serviceName)
}

/*
serverCommands returns the command that serves the HTTP API.
*/
func serverCommands(a *attendanceInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the attendance API server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			defer func() { _ = a.attendance.Close() }()

			shutdown, err := initializeObservability(ctx, a.cnf, "attendance-api")
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			router, err := initializeRouter(a)
			if err != nil {
				log.Fatal(err)
			}

			if err := startServer(router, a.cnf.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
