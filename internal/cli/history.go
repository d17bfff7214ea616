/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"locketprint/internal/domain"
)

func (a *App) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and restore previous prints",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded prints, most recent first",
		Args:  cobra.NoArgs,
		RunE: a.withSession(func(c *cobra.Command, args []string) error {
			jobs, err := a.hist.LoadAll(c.Context())
			if err != nil {
				return err
			}
			w := c.OutOrStdout()
			if len(jobs) == 0 {
				_, err := fmt.Fprintln(w, "no prints recorded")
				return err
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPRINTED\tPHOTOS")
			for _, j := range jobs {
				at := time.UnixMilli(j.Timestamp).Local().Format("2006-01-02 15:04")
				fmt.Fprintf(tw, "%s\t%s\t%d\n", j.ID, at, j.ImagesCount)
			}
			return tw.Flush()
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <id>",
		Short: "Replace the project with the snapshot of a previous print",
		Args:  cobra.ExactArgs(1),
		RunE: a.withSession(func(c *cobra.Command, args []string) error {
			found, err := a.session.Restore(c.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("print job %s: %w", args[0], domain.ErrNotFound)
			}
			fmt.Fprintf(c.OutOrStdout(), "restored %s, %d photos\n", args[0], len(a.session.State().Items))
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Remove one print from the history",
		Args:  cobra.ExactArgs(1),
		RunE: a.withSession(func(c *cobra.Command, args []string) error {
			return a.hist.Delete(c.Context(), args[0])
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget all recorded prints",
		Args:  cobra.NoArgs,
		RunE: a.withSession(func(c *cobra.Command, args []string) error {
			return a.hist.Clear(c.Context())
		}),
	})
	return cmd
}
