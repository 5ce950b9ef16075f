package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lborres/bantay"
	fiberadapter "github.com/lborres/bantay/adapters/fiber"
	"github.com/lborres/bantay/pkg/config"
	"github.com/lborres/bantay/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

func accessLogFormat() string {
	format := []string{
		// Timestamp & Request ID
		"${time}|${locals:requestid}",

		// Response metadata
		"${status}|${latency}",

		// Client info
		"${ip}:${port}",

		// Request details
		"${method}|${path}|${queryParams}",

		// errors
		"${error}",
	}
	return strings.Join(format, "|") + "\n"
}

func newServeCmd(rt *runtime) *cobra.Command {
	var addr string
	var accessLog bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live dashboard as JSON over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = rt.cfg.Server.Addr
			}

			app := fiber.New(fiber.Config{AppName: "bantay"})
			app.Use(fiberadapter.RequestID())
			if accessLog {
				app.Use(logger.New(logger.Config{
					Format:     accessLogFormat(),
					TimeFormat: "2006/01/02 15:04:05",
					TimeZone:   "Local",
				}))
			}

			poll := metrics.New()
			b, err := rt.dashboard(ctx, func(c *bantay.Config) {
				c.Observer = poll
				c.HTTP = fiberadapter.New(app, fiberadapter.WithMetrics(poll.Handler()))
			})
			if err != nil {
				return err
			}
			b.Start(ctx)

			log := rt.log.Named("serve")
			rt.loader.Watch(rt.log.Named("config"), func(cfg config.Config) {
				if !rt.verbose {
					if err := rt.log.SetLevel(cfg.Logging.Level); err != nil {
						log.Warn("ignoring log level", zap.String("level", cfg.Logging.Level), zap.Error(err))
					}
				}
				if err := b.Alerts.SetFilter(cfg.AlertFilter()); err != nil {
					log.Warn("ignoring alert filter", zap.Error(err))
				}
			})

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := app.ShutdownWithContext(shutdownCtx); err != nil {
					log.Error("shutdown failed", zap.Error(err))
				}
			}()

			log.Info("dashboard listening", zap.String("addr", addr), zap.String("backend", rt.cfg.Backend.URL))
			err = app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :3000)")
	cmd.Flags().BoolVar(&accessLog, "access-log", false, "log every request to stdout")
	return cmd
}
