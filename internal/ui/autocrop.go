/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"

	"locketprint/internal/domain"
	"locketprint/internal/vector"
)

// previewSourceMax bounds the photo handed to the compositor and the crop
// analyzer, in pixels per side.
const previewSourceMax = 1600

// PreviewSource shrinks src so the longer side is at most previewSourceMax.
func PreviewSource(src image.Image) image.Image {
	b := src.Bounds()
	if b.Dx() <= previewSourceMax && b.Dy() <= previewSourceMax {
		return src
	}
	return imaging.Fit(src, previewSourceMax, previewSourceMax, imaging.Linear)
}

type resizer struct{ filter imaging.ResampleFilter }

func (r resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}

// SubjectOffset suggests offsets that move the most interesting region of src,
// as found by smartcrop for the frame's aspect, to the center of the frame.
// Zoom and rotation are kept.
func SubjectOffset(ctx context.Context, src image.Image, item domain.PhotoItem) (x, y float64, err error) {
	analyzer := smartcrop.NewAnalyzer(resizer{filter: imaging.Linear})
	w := max(1, int(math.Round(item.WidthCm*100)))
	h := max(1, int(math.Round(item.HeightCm*100)))

	type result struct {
		crop image.Rectangle
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := analyzer.FindBestCrop(src, w, h)
		ch <- result{c, err}
	}()
	var res result
	select {
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	case res = <-ch:
	}
	if res.err != nil {
		return 0, 0, fmt.Errorf("find subject: %w", res.err)
	}

	b := src.Bounds()
	u := (float64(res.crop.Min.X+res.crop.Max.X)/2 - float64(b.Min.X)) / float64(b.Dx())
	v := (float64(res.crop.Min.Y+res.crop.Max.Y)/2 - float64(b.Min.Y)) / float64(b.Dy())
	x, y = offsetsFor(item, u, v)
	return x, y, nil
}

// offsetsFor returns the offsets that place the normalized image point (u, v)
// on the frame center under item's zoom and rotation.
func offsetsFor(item domain.PhotoItem, u, v float64) (x, y float64) {
	imgW := item.Zoom * item.WidthCm
	imgH := imgW * item.ImageAspect()
	d := vector.RotateDeg(item.Rotation).Apply(vector.Pt{X: (u - 0.5) * imgW, Y: (v - 0.5) * imgH})
	return 50 - d.X/item.WidthCm*100, 50 - d.Y/item.HeightCm*100
}
