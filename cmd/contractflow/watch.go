package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/contractflow/pkg/adapters/lifecycle"
	"github.com/aretw0/contractflow/pkg/events"
	"github.com/aretw0/contractflow/pkg/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch [id]",
	Short: "Print a contract's events as other processes change it",
	Long: `Open the contract, follow the local cache for changes made by other
contractflow processes and print every stage, signature and cache event until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		ctx := cmd.Context()
		bus := events.New(slog.Default())
		src := lifecycle.NewSource(bus, slog.Default(),
			events.TopicStageChanged, events.TopicSignatureChanged, events.TopicCacheChanged)
		if err := src.Start(ctx); err != nil {
			return err
		}

		s, err := ws.Open(ctx, args[0], nil, session.WithBus(bus), session.WithCacheWatch(true))
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		for e := range src.Events() {
			fmt.Fprintln(cmd.OutOrStdout(), e.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
