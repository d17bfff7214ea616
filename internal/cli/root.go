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
	"strconv"

	"github.com/spf13/cobra"

	"locketprint/internal/domain"
	"locketprint/internal/ui"
	"locketprint/internal/version"
)

func (a *App) NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locketprint",
		Short: "Crop photos into locket shapes and print them at true size",
		Long: `LocketPrint places photos into circle, oval, heart or rectangle frames of an
exact size in centimetres and prints them on an A4 sheet at 1:1 scale.

The working project is autosaved in the workspace after every change, and every
print is recorded in a short history that can be restored later.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	cmd.AddCommand(a.newImportCmd())
	cmd.AddCommand(a.newListCmd())
	cmd.AddCommand(a.newSelectCmd())
	cmd.AddCommand(a.newRemoveCmd())
	cmd.AddCommand(a.newSetCmd())
	cmd.AddCommand(a.newInheritCmd())
	cmd.AddCommand(a.newResetCmd())
	cmd.AddCommand(a.newLayoutCmd())
	cmd.AddCommand(a.newExportCmd())
	cmd.AddCommand(a.newPrintCmd())
	cmd.AddCommand(a.newHistoryCmd())
	cmd.AddCommand(a.newUICmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *App) newUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the desktop editor (requires a -tags fyne build)",
		Args:  cobra.NoArgs,
		RunE: a.withSession(func(cmd *cobra.Command, args []string) error {
			return ui.Run(cmd.Context(), ui.Deps{
				Session:   a.session,
				Workspace: a.ws,
				History:   a.hist,
				Editor:    a.cfg.Editor,
			})
		}),
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "LocketPrint", version.String())
			return err
		},
	}
}

// parseIndex converts a 1-based photo number to an index into st.Items.
func parseIndex(arg string, st domain.ProjectState) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("photo number %q: %w", arg, err)
	}
	if n < 1 || n > len(st.Items) {
		return 0, fmt.Errorf("photo %d: %w (have %d)", n, domain.ErrNotFound, len(st.Items))
	}
	return n - 1, nil
}
