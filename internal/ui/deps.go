/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui is the desktop front end: a photo list, the crop editor and the
// print preview. The Fyne window is only compiled with -tags fyne; the
// compositing in this file is shared and runs headless.
package ui

import (
	"locketprint/internal/config"
	"locketprint/internal/history"
	"locketprint/internal/project"
	"locketprint/internal/storage"
)

// Deps is what the window needs from the CLI wiring.
type Deps struct {
	Session   *project.Session
	Workspace *storage.Workspace
	History   history.Store // optional, enables the history dialog
	Editor    config.EditorConfig
}
