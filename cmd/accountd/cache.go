package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-account-cache/cache"
	"github.com/goliatone/go-account-cache/internal/logging"
)

func newCacheCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response cache",
	}
	cmd.AddCommand(newCacheFlushCommand(opts))
	return cmd
}

// flushMetrics counts backend failures so a fail-open sweep can still exit
// non-zero.
type flushMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *flushMetrics) Lookup(bool)             {}
func (m *flushMetrics) Invalidated(string, int) {}

func (m *flushMetrics) Error(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[op]++
}

func (m *flushMetrics) err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errors) == 0 {
		return nil
	}
	return fmt.Errorf("cache operations failed: %v", m.errors)
}

func newCacheFlushCommand(opts *rootOptions) *cobra.Command {
	var (
		pattern string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Remove cached entries, all of them or those matching --pattern",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			metrics := &flushMetrics{errors: map[string]int{}}
			ctx := cmd.Context()
			svc, store, err := cache.NewCacheService(ctx, cfg.CacheConfig(),
				cache.WithLogger(logger.Named("cache")),
				cache.WithMetrics(metrics),
				cache.WithOperationTimeout(timeout),
			)
			if err != nil {
				return err
			}
			if closer, ok := store.(io.Closer); ok {
				defer closer.Close()
			}

			if pattern == "" {
				svc.Reset(ctx)
				if err := metrics.err(); err != nil {
					return fmt.Errorf("flush: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cache flushed")
				return nil
			}

			n := svc.InvalidatePattern(ctx, pattern)
			if err := metrics.err(); err != nil {
				return fmt.Errorf("flush %q: %w", pattern, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d keys matching %q\n", n, pattern)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "exact key or prefix ending in *")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "deadline for the whole sweep")
	return cmd
}
