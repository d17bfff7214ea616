/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"locketprint/internal/domain"
	applog "locketprint/internal/log"
)

const (
	DraftFileName  = "project.json"
	AssetsDirName  = "assets"
	ExportsDirName = "exports"
	BackupsDirName = "backups"

	backupStamp = "20060102-150405"
)

var standardSubDirs = []string{
	AssetsDirName,
	ExportsDirName,
	BackupsDirName,
}

// Workspace is the directory holding the draft project and everything it references.
type Workspace struct {
	Root      string
	DraftPath string
	Assets    *Assets
}

// OpenWorkspace creates root and the standard subfolders when missing.
func OpenWorkspace(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	for _, d := range append([]string{""}, standardSubDirs...) {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create workspace dir %q: %w", d, err)
		}
	}
	return &Workspace{
		Root:      root,
		DraftPath: filepath.Join(root, DraftFileName),
		Assets:    &Assets{Dir: filepath.Join(root, AssetsDirName)},
	}, nil
}

func (w *Workspace) ExportsDir() string { return filepath.Join(w.Root, ExportsDirName) }

func (w *Workspace) BackupsDir() string { return filepath.Join(w.Root, BackupsDirName) }

// SaveDraft writes state to project.json with transactional semantics,
// after copying the previous draft to a timestamped backup.
func (w *Workspace) SaveDraft(state domain.ProjectState) error {
	data, err := encodeDraft(state)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(w.DraftPath); statErr == nil {
		bname := fmt.Sprintf("%s.%s.bak", DraftFileName, time.Now().Format(backupStamp))
		if cerr := copyFile(w.DraftPath, filepath.Join(w.BackupsDir(), bname)); cerr != nil {
			return fmt.Errorf("backup current draft: %w", cerr)
		}
	}
	if err := WriteFileAtomic(w.DraftPath, data); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	return nil
}

// LoadDraft reads project.json. A missing workspace draft yields an empty
// state. An unreadable or invalid draft falls back to the latest backup.
func (w *Workspace) LoadDraft() (domain.ProjectState, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "load_draft")
	b, err := os.ReadFile(w.DraftPath)
	if errors.Is(err, os.ErrNotExist) {
		if _, berr := w.latestBackup(); berr != nil {
			return domain.EmptyState(), nil
		}
	}
	if err == nil {
		st, derr := decodeDraft(b)
		if derr == nil {
			return st, nil
		}
		err = derr
	}
	l.Warn("draft unusable, trying backup", slog.Any("err", err))
	st, berr := w.openFromLatestBackup()
	if berr != nil {
		return domain.ProjectState{}, fmt.Errorf("open draft: %w; backup attempt: %v", err, berr)
	}
	return st, nil
}

// AutosaveCrashSnapshot writes state to a timestamped crash file under backups
// without touching the regular draft.
func (w *Workspace) AutosaveCrashSnapshot(state domain.ProjectState) (string, error) {
	data, err := encodeDraft(state)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.BackupsDir(), fmt.Sprintf("%s.crash-%s.json", DraftFileName, time.Now().Format(backupStamp)))
	if err := WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

func encodeDraft(state domain.ProjectState) ([]byte, error) {
	if state.Items == nil {
		state.Items = []domain.PhotoItem{}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal draft: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeDraft(b []byte) (domain.ProjectState, error) {
	if err := ValidateDraft(b); err != nil {
		return domain.ProjectState{}, err
	}
	var st domain.ProjectState
	if err := json.Unmarshal(b, &st); err != nil {
		return domain.ProjectState{}, fmt.Errorf("parse draft: %w", err)
	}
	if err := st.Validate(); err != nil {
		return domain.ProjectState{}, fmt.Errorf("invalid draft: %w", err)
	}
	return st, nil
}

func (w *Workspace) latestBackup() (string, error) {
	ents, err := os.ReadDir(w.BackupsDir())
	if err != nil {
		return "", fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, DraftFileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	return filepath.Join(w.BackupsDir(), candidates[len(candidates)-1]), nil
}

func (w *Workspace) openFromLatestBackup() (domain.ProjectState, error) {
	latest, err := w.latestBackup()
	if err != nil {
		return domain.ProjectState{}, err
	}
	b, err := os.ReadFile(latest)
	if err != nil {
		return domain.ProjectState{}, fmt.Errorf("read latest backup: %w", err)
	}
	st, err := decodeDraft(b)
	if err != nil {
		return domain.ProjectState{}, fmt.Errorf("latest backup: %w", err)
	}
	return st, nil
}
