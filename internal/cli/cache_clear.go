package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rshade/costlens/internal/config"
)

// NewCacheClearCmd creates the cache clear command.
func NewCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached data-source result",
		Long: `Clears the configured cache backend. File caches are emptied on disk, Redis
caches lose every costlens key; other keys in the Redis database are untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.GetGlobalConfig()
			audit := newAuditContext(ctx, "cache clear", map[string]string{"backend": cfg.Cache.Backend})

			store, err := openStore(ctx, cfg)
			if err != nil {
				audit.logFailure(ctx, err)
				return fmt.Errorf("opening %s cache: %w", cfg.Cache.Backend, err)
			}
			if c, ok := store.(io.Closer); ok {
				defer c.Close()
			}
			if err = store.Clear(ctx); err != nil {
				audit.logFailure(ctx, err)
				return fmt.Errorf("clearing %s cache: %w", cfg.Cache.Backend, err)
			}
			audit.logSuccess(ctx, 0, 0)

			backend := cfg.Cache.Backend
			if backend == "" {
				backend = config.CacheBackendMemory
			}
			cmd.Printf("Cache cleared (%s backend)\n", backend)
			if backend == config.CacheBackendMemory {
				cmd.Println("The memory backend keeps nothing between runs.")
			}
			return nil
		},
	}
}
