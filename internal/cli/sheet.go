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
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"locketprint/internal/export"
	"locketprint/internal/layout"
)

func (a *App) newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show where each photo lands on the sheet, in millimetres",
		Args:  cobra.NoArgs,
		RunE: a.withSession(func(cmd *cobra.Command, args []string) error {
			return writePage(cmd.OutOrStdout(), a.session.Layout())
		}),
	}
}

func writePage(w io.Writer, page layout.Page) error {
	fmt.Fprintf(w, "sheet %g×%g mm, margin %g mm, gap %g mm\n",
		page.Sheet.WidthMm, page.Sheet.HeightMm, page.Sheet.MarginMm, page.Sheet.GapMm)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tX\tY\tW\tH\tCAPTION\t")
	for _, pl := range page.Placements {
		caption := ""
		if pl.Caption != nil {
			caption = pl.Caption.Size + " " + pl.Caption.Shape
		}
		note := ""
		if pl.Overflow {
			note = "does not fit"
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%s\t%s\n", pl.Index+1, pl.Item.Name,
			pl.Frame.X, pl.Frame.Y, pl.Frame.W, pl.Frame.H, caption, note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if c := page.Calibration; c != nil {
		fmt.Fprintf(w, "calibration %.1f,%.1f to %.1f,%.1f mm (%s)\n", c.From.X, c.From.Y, c.To.X, c.To.Y, c.EndLabel)
	}
	return nil
}

func (a *App) newExportCmd() *cobra.Command {
	var (
		preset, out, name string
		dpi               int
		guides            bool
	)
	cmd := &cobra.Command{
		Use:   "export [pdf|svg|png]...",
		Short: "Export the sheet without printing",
		Long: `Export the current sheet in one or more formats. Without format arguments the
preset decides: print writes pdf and png with cut guides, web writes png and svg
with embedded images. Files land in <out>/<format>/<name>.<format>; a relative
--out is resolved under the workspace exports directory.`,
		Example: `  locketprint export
  locketprint export --preset web svg
  locketprint export png --dpi 300 --guides=false`,
		ValidArgs: []string{export.FormatPDF, export.FormatSVG, export.FormatPNG},
		Args:      cobra.OnlyValidArgs,
	}
	cmd.RunE = a.withSession(func(c *cobra.Command, args []string) error {
		opt := export.BatchOptions{
			Preset:      export.PresetName(strings.ToLower(preset)),
			Formats:     args,
			DPIOverride: dpi,
			OutDir:      out,
			ExportsDir:  a.ws.ExportsDir(),
			Name:        name,
		}
		if c.Flags().Changed("guides") {
			opt.IncludeGuides = &guides
		}
		files, err := export.BatchExport(a.session.Layout(), a.ws.Assets, opt)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(c.OutOrStdout(), f)
		}
		return nil
	})
	cmd.Flags().StringVar(&preset, "preset", string(export.PresetPrint), "Export preset: print or web")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default: the preset name)")
	cmd.Flags().StringVar(&name, "name", "", "Base file name (default \"sheet\")")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "PNG proof resolution (default 150)")
	cmd.Flags().BoolVar(&guides, "guides", true, "Draw cut guides around each frame")
	return cmd
}

func (a *App) newPrintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Record the project in the history and print the sheet",
		Long: `Snapshot the project into the print history, write the sheet as a 1:1 PDF in
the exports directory and open it with the configured open command so the
system print dialog can take over.`,
		Args: cobra.NoArgs,
		RunE: a.withSession(func(cmd *cobra.Command, args []string) error {
			job, out, err := a.session.Print(cmd.Context(), nil)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if job.ID != "" {
				fmt.Fprintf(w, "job %s (%d photos)\n", job.ID, job.ImagesCount)
			}
			if out != "" {
				fmt.Fprintln(w, out)
			}
			return nil
		}),
	}
}
