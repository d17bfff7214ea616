/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"locketprint/internal/layout"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// Formats understood by BatchExport.
const (
	FormatPDF = "pdf"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// BatchOptions controls a multi-format export of one sheet.
//
// Path semantics:
//   - If OutDir is empty it defaults to the preset name; relative paths are
//     resolved under ExportsDir.
//   - Each format writes <OutDir>/<format>/<Name>.<format>.
type BatchOptions struct {
	Preset        PresetName
	Formats       []string // pdf, svg, png; empty means preset defaults
	DPIOverride   int      // PNG proof resolution when > 0
	IncludeGuides *bool    // overrides the preset's cut guide default
	OutDir        string
	ExportsDir    string
	Name          string // base file name, default "sheet"
}

// BatchExport writes page in every requested format and returns the files written.
func BatchExport(page layout.Page, src ImageSource, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
	}
	if baseOut == "" {
		baseOut = string(PresetPrint)
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(opt.ExportsDir, baseOut)
	}
	name := opt.Name
	if name == "" {
		name = "sheet"
	}
	guides := presetIncludeGuides(opt.Preset)
	if opt.IncludeGuides != nil {
		guides = *opt.IncludeGuides
	}

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		out := filepath.Join(baseOut, f, name+"."+f)
		var err error
		switch f {
		case FormatPDF:
			err = ExportPDF(page, src, out, PDFOptions{CutGuides: guides})
		case FormatSVG:
			err = ExportSVG(page, src, out, SVGOptions{CutGuides: guides, Embed: opt.Preset == PresetWeb})
		case FormatPNG:
			err = ExportPNG(page, out, PNGOptions{CutGuides: guides, DPI: opt.DPIOverride})
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s export: %w", f, err)
		}
		written = append(written, out)
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{FormatPNG, FormatSVG}
	case PresetPrint:
		return []string{FormatPDF, FormatPNG}
	default:
		return []string{FormatPDF}
	}
}

func presetIncludeGuides(p PresetName) bool {
	return p != PresetWeb
}
