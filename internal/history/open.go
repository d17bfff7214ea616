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
	"fmt"

	"locketprint/internal/config"
)

// Open builds the Log selected by cfg. Workspace relative files are placed
// under gen.Workspace; password is the keychain secret for postgres.
func Open(ctx context.Context, gen config.GeneralConfig, cfg config.HistoryConfig, password string, opts ...Option) (*Log, error) {
	quota := int(cfg.QuotaBytes)
	var m Medium
	switch cfg.Backend {
	case config.BackendMemory:
		m = &MemoryMedium{QuotaBytes: quota}
	case config.BackendFile, "":
		m = &FileMedium{Path: gen.HistoryFile(), QuotaBytes: quota}
	case config.BackendSQLite:
		sm, err := OpenSQLite(ctx, gen.HistoryDB(), quota)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		m = sm
	case config.BackendPostgres:
		pm, err := OpenPostgres(ctx, cfg.PostgresDSN, password)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		m = pm
	default:
		return nil, fmt.Errorf("open history: unknown backend %q", cfg.Backend)
	}
	return New(m, append([]Option{WithCapacity(cfg.Capacity)}, opts...)...), nil
}
