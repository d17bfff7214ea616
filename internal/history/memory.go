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
	"fmt"
	"sync"

	"locketprint/internal/domain"
)

// MemoryMedium keeps the serialized list in memory. A positive QuotaBytes
// rejects writes whose encoded size exceeds it.
type MemoryMedium struct {
	QuotaBytes int

	mu   sync.Mutex
	data []byte
	// Writes counts WriteAll calls, including rejected ones.
	Writes int
}

func (m *MemoryMedium) ReadAll(_ context.Context) ([]domain.PrintJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decodeJobs(m.data)
}

func (m *MemoryMedium) WriteAll(_ context.Context, jobs []domain.PrintJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	b, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if m.QuotaBytes > 0 && len(b) > m.QuotaBytes {
		return fmt.Errorf("%d bytes over quota %d: %w", len(b), m.QuotaBytes, ErrQuotaExceeded)
	}
	m.data = b
	return nil
}

func (m *MemoryMedium) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

func decodeJobs(b []byte) ([]domain.PrintJob, error) {
	if len(b) == 0 {
		return []domain.PrintJob{}, nil
	}
	var jobs []domain.PrintJob
	if err := json.Unmarshal(b, &jobs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if jobs == nil {
		jobs = []domain.PrintJob{}
	}
	return jobs, nil
}
