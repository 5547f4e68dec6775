package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/draftdesk/scriptstore/catalog"
	"github.com/draftdesk/scriptstore/common"
	"github.com/draftdesk/scriptstore/httpserver"
	"github.com/draftdesk/scriptstore/storage"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Value: "127.0.0.1:8090",
		Usage: "address to listen on for Prometheus metrics",
	},
	&cli.StringFlag{
		Name:    "db-dsn",
		Value:   "",
		Usage:   "PostgreSQL DSN for the reference catalog (empty disables catalog endpoints)",
		EnvVars: []string{"SCRIPTSTORE_DB_DSN"},
	},
	&cli.BoolFlag{
		Name:  "db-migrate",
		Value: true,
		Usage: "run catalog schema migrations on startup",
	},
	&cli.StringFlag{
		Name:    "s3-bucket",
		Value:   "",
		Usage:   "S3 bucket name (empty selects local storage)",
		EnvVars: []string{"SCRIPTSTORE_S3_BUCKET"},
	},
	&cli.StringFlag{
		Name:    "s3-region",
		Value:   "us-east-1",
		Usage:   "S3 region",
		EnvVars: []string{"SCRIPTSTORE_S3_REGION"},
	},
	&cli.StringFlag{
		Name:    "s3-endpoint",
		Value:   "",
		Usage:   "custom S3 endpoint for S3-compatible stores",
		EnvVars: []string{"SCRIPTSTORE_S3_ENDPOINT"},
	},
	&cli.StringFlag{
		Name:    "s3-access-key",
		Value:   "",
		Usage:   "S3 access key id",
		EnvVars: []string{"SCRIPTSTORE_S3_ACCESS_KEY"},
	},
	&cli.StringFlag{
		Name:    "s3-secret-key",
		Value:   "",
		Usage:   "S3 secret access key",
		EnvVars: []string{"SCRIPTSTORE_S3_SECRET_KEY"},
	},
	&cli.StringFlag{
		Name:    "cdn-base-url",
		Value:   "",
		Usage:   "CDN base URL fronting the durable store",
		EnvVars: []string{"SCRIPTSTORE_CDN_BASE_URL"},
	},
	&cli.StringFlag{
		Name:  "upload-dir",
		Value: "./uploads",
		Usage: "directory for local storage",
	},
	&cli.StringFlag{
		Name:  "legacy-upload-dir",
		Value: "",
		Usage: "read-only directory holding files from earlier deployments",
	},
	&cli.StringFlag{
		Name:  "serve-base-url",
		Value: "http://127.0.0.1:8080",
		Usage: "public base URL for locally served files",
	},
	&cli.IntFlag{
		Name:  "scan-fanout",
		Value: 8,
		Usage: "concurrent existence checks per integrity scan category",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: common.PackageName,
		Usage: "add 'service' tag to logs",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:  "scriptstore-server",
		Usage: "Serve the script file storage and reference integrity API",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String("listen-addr")
			metricsAddr := cCtx.String("metrics-addr")
			dbDSN := cCtx.String("db-dsn")
			dbMigrate := cCtx.Bool("db-migrate")
			scanFanout := cCtx.Int("scan-fanout")
			logJSON := cCtx.Bool("log-json")
			logDebug := cCtx.Bool("log-debug")
			logUID := cCtx.Bool("log-uid")
			logService := cCtx.String("log-service")
			enablePprof := cCtx.Bool("pprof")
			drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

			logger := common.SetupLogger(&common.LoggingOpts{
				Debug:   logDebug,
				JSON:    logJSON,
				Service: logService,
				Version: common.Version,
			})

			if logUID {
				id := uuid.Must(uuid.NewRandom())
				logger = logger.With("uid", id.String())
			}

			storageCfg := storage.Config{
				S3Bucket:        cCtx.String("s3-bucket"),
				S3Region:        cCtx.String("s3-region"),
				S3Endpoint:      cCtx.String("s3-endpoint"),
				S3AccessKey:     cCtx.String("s3-access-key"),
				S3SecretKey:     cCtx.String("s3-secret-key"),
				CDNBaseURL:      cCtx.String("cdn-base-url"),
				UploadDir:       cCtx.String("upload-dir"),
				LegacyUploadDir: cCtx.String("legacy-upload-dir"),
				ServeBaseURL:    cCtx.String("serve-base-url"),
			}

			facade, err := storage.NewFacade(storageCfg, logger)
			if err != nil {
				logger.Error("Failed to create storage facade", "err", err)
				return err
			}
			logger.Info("Storage backend selected", "backend", facade.Backend())

			// The catalog is optional: without a DSN the service still
			// uploads and serves files, only the reference-integrity
			// endpoints are disabled.
			var repo catalog.Repository
			if dbDSN != "" {
				db, err := catalog.Open(dbDSN)
				if err != nil {
					logger.Error("Failed to connect to catalog database", "err", err)
					return err
				}
				defer db.Close()

				if dbMigrate {
					if err := catalog.RunMigrations(context.Background(), db); err != nil {
						logger.Error("Catalog migrations failed", "err", err)
						return err
					}
				}
				repo = catalog.NewPostgresRepository(db)
				logger.Info("Reference catalog connected")
			} else {
				logger.Warn("No db-dsn configured, integrity endpoints disabled")
			}

			cfg := &httpserver.HTTPServerConfig{
				ListenAddr:               listenAddr,
				MetricsAddr:              metricsAddr,
				Log:                      logger,
				EnablePprof:              enablePprof,
				DrainDuration:            drainDuration,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              60 * time.Second,
				WriteTimeout:             30 * time.Second,
			}

			handler := httpserver.NewHandler(facade, repo, scanFanout, logger)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
