package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/starcourier/starcourier/pkg/models"
)

func newSavesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saves",
		Short: "Manage saved games",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List local saves",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			saves, err := a.saves.ListLocal(cmd.Context())
			if err != nil {
				return err
			}
			return printSaves(cmd.OutOrStdout(), saves)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a local save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.saves.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	var outPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all local saves as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.saves.ExportAll(cmd.Context())
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", outPath)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace local saves with an exported bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read bundle: %w", err)
			}
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.saves.ImportAll(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d saves (bundle version %s)\n", len(b.SavedGames), b.Version)
			return nil
		},
	}

	remoteCmd := &cobra.Command{
		Use:   "remote PLAYER",
		Short: "List a player's cloud saves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			saves, err := a.client.ListCloud(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printSaves(cmd.OutOrStdout(), saves)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every local save",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.saves.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All local saves cleared.")
			return nil
		},
	}

	cmd.AddCommand(listCmd, deleteCmd, exportCmd, importCmd, remoteCmd, clearCmd)
	return cmd
}

func printSaves(out io.Writer, saves []models.SaveRecord) error {
	if len(saves) == 0 {
		fmt.Fprintln(out, "No saves found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSAVED\tPLAYER\tSCENE\tCHOICES")
	for _, s := range saves {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.Name, s.CreatedAt.Format("2006-01-02T15:04:05"), s.PlayerID, s.CurrentSceneID, s.ChoicesMade)
	}
	return w.Flush()
}
