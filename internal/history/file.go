/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"

	"locketprint/internal/domain"
	"locketprint/internal/storage"
)

// FileMedium stores the log as one JSON array in Path, replaced atomically on
// every write. A positive QuotaBytes caps the encoded size.
type FileMedium struct {
	Path       string
	QuotaBytes int
}

func (m *FileMedium) ReadAll(_ context.Context) ([]domain.PrintJob, error) {
	b, err := os.ReadFile(m.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.PrintJob{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return decodeJobs(b)
}

func (m *FileMedium) WriteAll(_ context.Context, jobs []domain.PrintJob) error {
	b, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if m.QuotaBytes > 0 && len(b) > m.QuotaBytes {
		return fmt.Errorf("%d bytes over quota %d: %w", len(b), m.QuotaBytes, ErrQuotaExceeded)
	}
	if err := storage.WriteFileAtomic(m.Path, b); err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return err
	}
	return nil
}

func (m *FileMedium) Clear(_ context.Context) error {
	if err := os.Remove(m.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove history file: %w", err)
	}
	return nil
}
