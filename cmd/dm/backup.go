package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datememo/datememo/internal/backup"
	"github.com/datememo/datememo/internal/reconcile"
	"github.com/datememo/datememo/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export <file>",
	GroupID: "advanced",
	Short:   "Write everyone on this device to a backup file",
	Long: `Write a backup. The format follows the file extension:
.json, .jsonl (or .ndjson), .yaml (or .yml) and .toml.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd.Context())
		defer a.Close()

		persons := a.local.GetAll()
		if err := backup.WriteFile(args[0], persons); err != nil {
			fail("%v", err)
		}
		fmt.Printf("%s Exported %d people to %s\n", ui.RenderPass("✓"), len(persons), args[0])
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "advanced",
	Short:   "Load people from a backup file",
	Long: `Load a backup written by 'dm export'.

By default the data on this device is replaced by the backup. With --merge
both are combined by id and the most recently updated version of each person
is kept.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd.Context())
		defer a.Close()

		res, err := backup.ReadFile(args[0])
		if err != nil {
			fail("%v", err)
		}
		for _, s := range res.Skipped {
			fmt.Fprintf(os.Stderr, "%s skipped %s\n", ui.RenderWarn("⚠"), s)
		}

		merge, _ := cmd.Flags().GetBool("merge")
		persons := res.Persons
		if merge {
			var conflicts []reconcile.Conflict
			persons, conflicts = reconcile.Merge(a.local.GetAll(), res.Persons)
			if len(conflicts) > 0 {
				fmt.Printf("   %d people differed; kept the newer version of each\n", len(conflicts))
			}
		} else if n := len(a.local.GetAll()); n > 0 {
			ok, asked := confirm(fmt.Sprintf("Replace the %d people on this device with %d from the backup?", n, len(persons)))
			if !asked {
				fail("refusing to replace local data without confirmation; pass --yes or --merge")
			}
			if !ok {
				fmt.Println("Cancelled")
				return
			}
		}

		if err := a.orch.ReplaceLocal(persons); err != nil {
			fail("%v", err)
		}
		fmt.Printf("%s Imported %d people\n", ui.RenderPass("✓"), len(res.Persons))
		if a.orch.Session().Cloud() {
			fmt.Println("   Run 'dm sync' to update the cloud copy.")
		}
	},
}

func init() {
	importCmd.Flags().Bool("merge", false, "Combine with the data on this device instead of replacing it")

	rootCmd.AddCommand(exportCmd, importCmd)
}
