package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"paperlens/internal/config"
	"paperlens/internal/logger"
)

func cacheCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the analysis cache",
	}
	cmd.AddCommand(cachePurgeCmd(cfgPath), cacheForgetCmd(cfgPath))
	return cmd
}

func cachePurgeCmd(cfgPath *string) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete stored analyses older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			return withStores(*cfgPath, func(ctx context.Context, st *stores) error {
				if st.db == nil {
					return errors.New("no database configured")
				}
				n, err := st.cache.Purge(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d analyses\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of analyses to delete")
	return cmd
}

func cacheForgetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <sha256>",
		Short: "Drop one paper's cached analysis so it is analyzed again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(*cfgPath, func(ctx context.Context, st *stores) error {
				if !st.cache.Enabled() {
					return errors.New("no cache configured")
				}
				st.cache.Invalidate(ctx, args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
				return nil
			})
		},
	}
}

func withStores(cfgPath string, fn func(ctx context.Context, st *stores) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	st, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return fn(ctx, st)
}
