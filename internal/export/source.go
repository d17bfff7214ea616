/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a laid out sheet into files: a true-scale PDF for
// printing, an SVG and a PNG proof. All renderers read geometry from
// layout.Page in millimetres and never resample photos.
package export

import (
	"image"

	"locketprint/internal/layout"
)

// ImageSource resolves the image refs stored on photo items.
// *storage.Assets implements it.
type ImageSource interface {
	Path(ref string) (string, error)
	Format(ref string) (string, error)
	Decode(ref string) (image.Image, error)
}

// Greys used for guides and captions (0..255).
const (
	guideGrey       = 190
	placeholderGrey = 230
	captionDark     = 51
	captionLight    = 120
)

// printable returns the placements that fit on the sheet. Overflowing
// placements are reported to the caller through layout.Page.Overflowing.
func printable(page layout.Page) []layout.Placement {
	out := make([]layout.Placement, 0, len(page.Placements))
	for _, pl := range page.Placements {
		if !pl.Overflow {
			out = append(out, pl)
		}
	}
	return out
}
