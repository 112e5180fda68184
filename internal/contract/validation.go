// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"encoding/json"
	"os"
	"strconv"
)

const (
	// DefaultSoftLimitBytes is the baseline soft limit for one node or
	// relationship batch's marshaled size.
	DefaultSoftLimitBytes = 64 << 20 // 64 MiB

	// RepositoryIDMaxBytes is the maximum length for a repository_id field.
	RepositoryIDMaxBytes = 128
)

// SoftLimitBytes returns the effective soft limit for a single
// SaveNodesBatch/SaveRelationshipsBatch call. Controlled via env
// CODEGRAPH_BATCH_SOFT_LIMIT_BYTES; falls back to DefaultSoftLimitBytes.
func SoftLimitBytes() int {
	if v := os.Getenv("CODEGRAPH_BATCH_SOFT_LIMIT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSoftLimitBytes
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateBatchSize checks that a batch's JSON-marshaled size stays under
// SoftLimitBytes, so a single runaway batch cannot exhaust memory before
// the graph store even opens its transaction. batch is typically a
// []model.Node or []model.Relationship slice.
func ValidateBatchSize(batch any) *ValidationResult {
	data, err := json.Marshal(batch)
	if err != nil {
		return &ValidationResult{OK: false, Message: "batch could not be marshaled: " + err.Error()}
	}
	if len(data) > SoftLimitBytes() {
		return &ValidationResult{OK: false, Message: "batch exceeds soft limit"}
	}
	return &ValidationResult{OK: true}
}
