/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned for files whose header no registered decoder understands.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Asset is an imported photo stored under its content hash.
type Asset struct {
	// Ref is the workspace relative path, e.g. assets/<sha256>.jpg.
	Ref    string
	Name   string
	Format string
	Width  int
	Height int
}

// Assets is the content addressed photo store of a workspace.
type Assets struct {
	Dir string
}

var formatExt = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"bmp":  ".bmp",
	"tiff": ".tif",
	"webp": ".webp",
}

// Register copies the file at src into the store and reads its pixel size from the header.
func (a *Assets) Register(src string) (Asset, error) {
	f, err := os.Open(src)
	if err != nil {
		return Asset{}, fmt.Errorf("open photo: %w", err)
	}
	defer func() { _ = f.Close() }()
	return a.RegisterReader(filepath.Base(src), f)
}

// RegisterReader stores the bytes of r. Identical content is stored once.
func (a *Assets) RegisterReader(name string, r io.Reader) (Asset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Asset{}, fmt.Errorf("read photo %s: %w", name, err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Asset{}, fmt.Errorf("%s: %w: %v", name, ErrUnsupportedImage, err)
	}
	sum := sha256.Sum256(data)
	file := hex.EncodeToString(sum[:]) + formatExt[format]
	path := filepath.Join(a.Dir, file)
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if err := WriteFileAtomic(path, data); err != nil {
			return Asset{}, fmt.Errorf("store photo %s: %w", name, err)
		}
	}
	return Asset{
		Ref:    AssetsDirName + "/" + file,
		Name:   name,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// Path resolves a ref produced by Register to a file path. Refs that are
// absolute paths are returned unchanged.
func (a *Assets) Path(ref string) (string, error) {
	if filepath.IsAbs(ref) {
		return ref, nil
	}
	rel, ok := strings.CutPrefix(filepath.ToSlash(ref), AssetsDirName+"/")
	if !ok || rel == "" || strings.Contains(rel, "/") || strings.HasPrefix(rel, ".") {
		return "", fmt.Errorf("invalid asset ref %q", ref)
	}
	return filepath.Join(a.Dir, rel), nil
}

// Format returns the decoder name for the asset at ref (jpeg, png, ...).
func (a *Assets) Format(ref string) (string, error) {
	p, err := a.Path(ref)
	if err != nil {
		return "", err
	}
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("open asset: %w", err)
	}
	defer func() { _ = f.Close() }()
	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", ref, ErrUnsupportedImage, err)
	}
	return format, nil
}

// Decode reads the full image at ref. Exporters use it to re-encode formats
// a document backend cannot embed directly.
func (a *Assets) Decode(ref string) (image.Image, error) {
	p, err := a.Path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", ref, err)
	}
	return img, nil
}
