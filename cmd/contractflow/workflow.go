package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/contractflow/pkg/core"
	"github.com/aretw0/contractflow/pkg/signature"
	"github.com/aretw0/contractflow/pkg/stage"
)

var (
	explicit   bool
	signerName string
	imageFile  string
	confirm    bool
)

var stageCmd = &cobra.Command{
	Use:   "stage [id] [target]",
	Short: "Show or change a contract's stage",
	Long: `Without a target, print the current stage. With one of edit, sign or send,
move the contract there. Returning to edit after the designer signed needs
--explicit and removes the designer signature.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		s, err := ws.Open(cmd.Context(), args[0], nil)
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		if len(args) == 2 {
			if err := s.Transition(cmd.Context(), core.Stage(args[1]), stage.Intent{Explicit: explicit}); err != nil {
				return err
			}
		}
		lock := "editable"
		if s.ReadOnly() {
			lock = "locked"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", s.Stage(), lock)
		return nil
	},
}

var signCmd = &cobra.Command{
	Use:   "sign [id] [role]",
	Short: "Sign a contract as designer or client",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		data := signature.Data{SignerUserID: ws.User(), Name: signerName, UserAgent: "contractflow-cli"}
		if imageFile != "" {
			img, err := os.ReadFile(imageFile)
			if err != nil {
				return fmt.Errorf("read signature image: %w", err)
			}
			data.Image = img
		}

		s, err := ws.Open(cmd.Context(), args[0], nil)
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		if err := s.Sign(cmd.Context(), core.Role(args[1]), data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "signed as %s, stage %s\n", args[1], s.Stage())
		return nil
	},
}

var unsignCmd = &cobra.Command{
	Use:   "unsign [id] [role]",
	Short: "Remove a signature",
	Long:  `Remove a role's signature and return the contract to draft. Removing the designer signature needs --confirm.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		s, err := ws.Open(cmd.Context(), args[0], nil)
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		if err := s.Unsign(cmd.Context(), core.Role(args[1]), confirm); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unsigned %s, stage %s\n", args[1], s.Stage())
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Print the reconciled status of a contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		s, err := ws.Open(cmd.Context(), args[0], nil)
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		view, err := s.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (source: %s", view.Status, view.Source)
		if view.Stale {
			fmt.Fprint(cmd.OutOrStdout(), ", local value was stale")
		}
		fmt.Fprintln(cmd.OutOrStdout(), ")")
		return nil
	},
}

func init() {
	stageCmd.Flags().BoolVar(&explicit, "explicit", false, "Confirm returning to edit over a designer signature")
	signCmd.Flags().StringVar(&signerName, "name", "", "Signer name")
	signCmd.Flags().StringVar(&imageFile, "image", "", "Signature image file")
	_ = signCmd.MarkFlagRequired("name")
	unsignCmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm removing the designer signature")

	rootCmd.AddCommand(stageCmd, signCmd, unsignCmd, statusCmd)
}
