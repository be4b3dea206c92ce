package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paperlens/paperlens/internal/remote"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload locally extracted figures missing from the remote store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		if store == nil {
			return fmt.Errorf("no remote store configured; set remote.db_path or PAPERLENS_REMOTE_DB")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		uploaded, err := remote.Sync(ctx, store, cfg.DataRoot, log)
		if err != nil {
			return err
		}
		fmt.Printf("uploaded %d images\n", uploaded)
		return nil
	},
}
