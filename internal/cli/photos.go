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
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"locketprint/internal/domain"
	"locketprint/internal/layout"
)

func (a *App) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Add photos to the project",
		Long: `Copy photos into the workspace and add them to the project with the default
frame: a 2.5 cm circle at 120% zoom. The last imported photo becomes selected.
Either all files are added or none.`,
		Example: `  locketprint import mum.jpg dad.png`,
		Args:    cobra.MinimumNArgs(1),
		RunE: a.withSession(func(cmd *cobra.Command, args []string) error {
			items, err := a.session.ImportAll(cmd.Context(), args)
			if err != nil {
				return err
			}
			st := a.session.State()
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "added #%d %s (%dx%d px)\n", st.IndexOf(it.ID)+1, it.Name, it.NaturalWidth, it.NaturalHeight)
			}
			return nil
		}),
	}
}

func (a *App) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the photos in the project",
		Args:  cobra.NoArgs,
		RunE: a.withSession(func(cmd *cobra.Command, args []string) error {
			return writeItems(cmd.OutOrStdout(), a.session.State())
		}),
	}
}

func writeItems(w io.Writer, st domain.ProjectState) error {
	if len(st.Items) == 0 {
		_, err := fmt.Fprintln(w, "no photos")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\t#\tNAME\tSHAPE\tSIZE\tLOCK\tZOOM\tROTATION\tOFFSET")
	for i, it := range st.Items {
		mark := ""
		if i == st.SelectedIndex {
			mark = "*"
		}
		lock := ""
		if it.LockAspectRatio {
			lock = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s×%s cm\t%s\t%d%%\t%g°\t%g,%g\n",
			mark, i+1, it.Name, it.Shape,
			layout.FormatCm(it.WidthCm), layout.FormatCm(it.HeightCm), lock,
			int(math.Round(it.Zoom*100)), it.Rotation, it.OffsetX, it.OffsetY)
	}
	return tw.Flush()
}

func (a *App) newSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <n>",
		Short: "Select photo n (0 clears the selection)",
		Args:  cobra.ExactArgs(1),
		RunE: a.withSession(func(cmd *cobra.Command, args []string) error {
			if args[0] == "0" {
				a.session.Select(-1)
				return nil
			}
			i, err := parseIndex(args[0], a.session.State())
			if err != nil {
				return err
			}
			a.session.Select(i)
			return nil
		}),
	}
}

func (a *App) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <n>",
		Short: "Remove photo n",
		Args:  cobra.ExactArgs(1),
		RunE: a.withSession(func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0], a.session.State())
			if err != nil {
				return err
			}
			st := a.session.Remove(i)
			fmt.Fprintf(cmd.OutOrStdout(), "removed #%d, %d left\n", i+1, len(st.Items))
			return nil
		}),
	}
}

func (a *App) newSetCmd() *cobra.Command {
	var (
		shape, width, height string
		lock                 bool
		zoom, rotation       float64
		offsetX, offsetY     float64
	)
	cmd := &cobra.Command{
		Use:   "set <n>",
		Short: "Change the frame and crop of photo n",
		Long: `Change the frame and crop of photo n. Only the flags given are applied, in the
order shape, lock, width, height, zoom, rotation, offsets. With the aspect lock
on, changing one side scales the other by the ratio before the edit.`,
		Example: `  locketprint set 1 --shape heart --width 3 --height 2
  locketprint set 2 --lock --width 4 --zoom 1.5 --rotation 90`,
		Args: cobra.ExactArgs(1),
	}
	cmd.RunE = a.withSession(func(c *cobra.Command, args []string) error {
		i, err := parseIndex(args[0], a.session.State())
		if err != nil {
			return err
		}
		var parsed domain.Shape
		if c.Flags().Changed("shape") {
			if parsed, err = domain.ParseShape(shape); err != nil {
				return err
			}
		}
		f := c.Flags()
		return a.session.UpdateAt(i, func(p domain.PhotoItem) domain.PhotoItem {
			if f.Changed("shape") {
				p = p.SetShape(parsed)
			}
			if f.Changed("lock") && p.LockAspectRatio != lock {
				p = p.ToggleAspectLock()
			}
			if f.Changed("width") {
				p = p.SetDimensionText(domain.AxisWidth, width)
			}
			if f.Changed("height") {
				p = p.SetDimensionText(domain.AxisHeight, height)
			}
			if f.Changed("zoom") {
				p = p.SetZoom(zoom)
			}
			if f.Changed("rotation") {
				p = p.SetRotation(rotation)
			}
			if f.Changed("offset-x") || f.Changed("offset-y") {
				x, y := p.OffsetX, p.OffsetY
				if f.Changed("offset-x") {
					x = offsetX
				}
				if f.Changed("offset-y") {
					y = offsetY
				}
				p = p.SetOffset(x, y)
			}
			return p
		})
	})

	cmd.Flags().StringVar(&shape, "shape", "", "Frame shape: circle, oval, heart or rectangle")
	cmd.Flags().StringVar(&width, "width", "", "Frame width in cm (minimum 0.1)")
	cmd.Flags().StringVar(&height, "height", "", "Frame height in cm (minimum 0.1)")
	cmd.Flags().BoolVar(&lock, "lock", false, "Keep the width:height ratio when resizing")
	cmd.Flags().Float64Var(&zoom, "zoom", 1, "Image zoom (0.1 to 10)")
	cmd.Flags().Float64Var(&rotation, "rotation", 0, "Image rotation in degrees")
	cmd.Flags().Float64Var(&offsetX, "offset-x", 50, "Image center, percent of frame width")
	cmd.Flags().Float64Var(&offsetY, "offset-y", 50, "Image center, percent of frame height")
	return cmd
}

func (a *App) newInheritCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inherit",
		Short: "Copy the first photo's frame and crop onto the selected photo",
		Args:  cobra.NoArgs,
		RunE: a.withSession(func(cmd *cobra.Command, args []string) error {
			st := a.session.State()
			if _, ok := st.Selected(); !ok {
				return domain.ErrNoSelection
			}
			a.session.InheritFromFirst()
			return nil
		}),
	}
}

func (a *App) newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <n>",
		Short: "Reset zoom, offsets and rotation of photo n",
		Args:  cobra.ExactArgs(1),
		RunE: a.withSession(func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0], a.session.State())
			if err != nil {
				return err
			}
			return a.session.UpdateAt(i, domain.PhotoItem.Reset)
		}),
	}
}
