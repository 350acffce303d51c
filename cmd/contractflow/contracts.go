package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/contractflow/pkg/session"
)

var (
	inputFile string
	showJSON  bool
	showYAML  bool
)

func readInput(cmd *cobra.Command) ([]byte, error) {
	if inputFile == "" || inputFile == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(inputFile)
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a contract",
	Long:  `Create a draft contract from the content of --file (stdin by default) and print its id.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readInput(cmd)
		if err != nil {
			return fmt.Errorf("read content: %w", err)
		}
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		id, err := ws.Create(cmd.Context(), content)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a contract",
	Long:  `Print a contract's content, or the whole document with --json or --yaml. Counts as a view.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		repo := ws.Repository()
		if err := repo.RecordView(cmd.Context(), args[0]); err != nil {
			return err
		}
		c, err := repo.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case showJSON:
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(c)
		case showYAML:
			encoder := yaml.NewEncoder(out)
			defer encoder.Close()
			return encoder.Encode(c)
		default:
			_, err := out.Write(c.Content)
			return err
		}
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Replace a contract's content",
	Long: `Replace the content with --file (stdin by default). The write goes through
the editor lock, so it fails while the contract is locked for signing or sending.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readInput(cmd)
		if err != nil {
			return fmt.Errorf("read content: %w", err)
		}
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		c, err := ws.Repository().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		buf := session.NewBuffer(c.Content)
		s, err := ws.Open(cmd.Context(), args[0], buf)
		if err != nil {
			return err
		}
		if err := buf.Write(content); err != nil {
			_ = s.Close(cmd.Context())
			return fmt.Errorf("edit %s in stage %s: %w", args[0], s.Stage(), err)
		}
		return s.Close(cmd.Context())
	},
}

func init() {
	newCmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read content from file instead of stdin")
	editCmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read content from file instead of stdin")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	showCmd.Flags().BoolVar(&showYAML, "yaml", false, "Output in YAML format")
	showCmd.MarkFlagsMutuallyExclusive("json", "yaml")

	rootCmd.AddCommand(newCmd, showCmd, editCmd)
}
