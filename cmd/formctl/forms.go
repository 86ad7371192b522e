package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/handwriting-extractor/internal/export"
	repo "github.com/joseph-ayodele/handwriting-extractor/internal/repository"
)

var formsCmd = &cobra.Command{
	Use:   "forms",
	Short: "Inspect stored forms",
}

var (
	listOffset int
	listLimit  int
	exportOut  string
)

var formsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored forms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		forms, err := formRepo(cmd)
		if err != nil {
			return err
		}
		list, err := forms.List(cmd.Context(), listOffset, listLimit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No forms found in database.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBYTES\tCREATED")
		fmt.Fprintln(w, "--\t----\t-----\t-------")
		for _, f := range list {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", f.ID, f.FormName, len(f.Data), f.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var formsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one stored form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		forms, err := formRepo(cmd)
		if err != nil {
			return err
		}
		f, err := forms.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("id:         %d\nform_name:  %s\ncreated_at: %s\nupdated_at: %s\n\n%s\n",
			f.ID, f.FormName, f.CreatedAt.Local().Format("2006-01-02 15:04:05"), f.UpdatedAt.Local().Format("2006-01-02 15:04:05"), f.Data)
		return nil
	},
}

var formsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		forms, err := formRepo(cmd)
		if err != nil {
			return err
		}
		if err := forms.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Form with id %d deleted successfully\n", id)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every stored form to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		forms, err := formRepo(cmd)
		if err != nil {
			return err
		}
		b, err := export.NewService(forms, env.logger).ExportFormsXLSX(cmd.Context())
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, b, 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s (%d bytes)\n", exportOut, len(b))
		return nil
	},
}

func init() {
	formsListCmd.Flags().IntVar(&listOffset, "offset", 0, "Skip this many forms")
	formsListCmd.Flags().IntVar(&listLimit, "limit", 0, "Show at most this many forms (0 = all)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "forms.xlsx", "Output file")

	formsCmd.AddCommand(formsListCmd, formsGetCmd, formsDeleteCmd)
	rootCmd.AddCommand(formsCmd, exportCmd)
}

func formRepo(cmd *cobra.Command) (repo.FormRepository, error) {
	db, err := env.openDB(cmd.Context())
	if err != nil {
		return nil, err
	}
	return repo.NewFormRepository(db, env.logger), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid form id %q", s)
	}
	return id, nil
}
