/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show translation job history",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent translation jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		jobs, err := db.ListJobs(cmd.Context(), jobsLimit)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tENGINE\tSOURCE\tTARGET\tITEMS\tTOKENS\tDURATION\tINPUT\tERROR")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\t%s\t%s\n",
				j.ID, j.CreatedAt.Format("2006-01-02 15:04"), j.Status, j.Engine, j.SourceLang, j.TargetLang,
				j.TranslatedItems, j.TotalItems, j.TokenCount, j.FinishedAt.Sub(j.CreatedAt).Round(100*time.Millisecond),
				truncate(j.InputFile, 40), truncate(j.Error, 60))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsListCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "Maximum number of jobs to show (0 = all)")
	jobsCmd.AddCommand(jobsListCmd)
}
