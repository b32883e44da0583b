package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshade/costlens/internal/config"
	"github.com/rshade/costlens/internal/identity"
	"github.com/rshade/costlens/internal/logging"
	"github.com/rshade/costlens/internal/server"
)

// NewServeCmd creates the serve command, which runs the HTTP API until
// interrupted.
func NewServeCmd() *cobra.Command {
	var (
		analysis    analysisFlags
		addr        string
		sourceKind  string
		file        string
		requireAuth bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API",
		Long: `Starts the HTTP API:

  POST /api/v1/analyze         analyze an uploaded CSV, XLSX or JSON export
  GET  /api/v1/summary         rank entities from the configured data source
  POST /api/v1/cache/refresh   drop cached source data
  GET  /health, GET /metrics   liveness and Prometheus metrics

Callers are identified by a bearer token checked by the configured identity
provider (static token or OIDC). With --require-auth, unauthenticated API
calls are rejected.`,
		Example: `  costlens serve
  costlens serve --addr 127.0.0.1:9090 --source azure --require-auth`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg := config.GetGlobalConfig()

			p, err := analysis.pipeline(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("require-auth") {
				requireAuth = cfg.Server.RequireAuth
			}

			opts := server.Options{
				Pipeline:         p,
				NormalizeOptions: normalizeOptions(cfg),
				RequireAuth:      requireAuth,
				TopN:             cfg.Analysis.TopN,
				Audit:            logging.AuditLoggerFromContext(ctx),
			}

			src, cached, closeSrc, err := buildSource(ctx, sourceKind, file)
			switch {
			case err == nil:
				opts.Source = src
				defer func() { _ = closeSrc() }()
			case errors.Is(err, errNoInput):
				logger.Info().Ctx(ctx).Msg("no data source configured, /api/v1/summary is disabled")
			default:
				return err
			}
			if cached != nil {
				opts.Cache = cached
			}

			provider, err := identity.FromConfig(ctx, cfg.Identity)
			if err != nil {
				return err
			}
			opts.Identity = provider

			srv := server.New(opts, logging.ComponentLogger(*logging.FromContext(ctx), "server"))
			cmd.Printf("Serving costlens API on %s\n", addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	analysis.bind(cmd)
	cmd.Flags().StringVar(&addr, "addr", config.DefaultServerAddr, "listen address")
	cmd.Flags().StringVar(&sourceKind, "source", "", "data source for /summary: file, azure, s3 or sqlite")
	cmd.Flags().StringVarP(&file, "file", "f", "", "serve /summary from a local cost export")
	cmd.Flags().BoolVar(&requireAuth, "require-auth", false, "reject unauthenticated API calls")
	return cmd
}
