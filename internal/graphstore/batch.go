// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package graphstore

import "fmt"

// Batcher splits a slice into batches bounded by both a target item count
// and an estimated total byte size.
type Batcher[T any] struct {
	targetSize int
	maxBytes   int
	sizeOf     func(T) int
	weightOf   func(T) int
}

// NewBatcher creates a Batcher that counts one item as one unit against
// targetSize. sizeOf estimates one item's contribution to a batch's byte
// budget (e.g. len(properties) plus a fixed per-record overhead).
func NewBatcher[T any](targetSize, maxBytes int, sizeOf func(T) int) *Batcher[T] {
	return NewWeightedBatcher(targetSize, maxBytes, sizeOf, func(T) int { return 1 })
}

// NewWeightedBatcher creates a Batcher whose items may count as more than
// one unit against targetSize. This lets a caller treat an atomic group of
// several underlying records (e.g. every node belonging to one file) as a
// single T while still bounding the batch by the true record count.
func NewWeightedBatcher[T any](targetSize, maxBytes int, sizeOf func(T) int, weightOf func(T) int) *Batcher[T] {
	return &Batcher[T]{targetSize: targetSize, maxBytes: maxBytes, sizeOf: sizeOf, weightOf: weightOf}
}

// Batch splits items into batches. A single item whose estimated size
// exceeds maxBytes is an error: since T may already be an atomic group that
// cannot be split further, the caller is asked to shrink maxBytes's unit
// rather than Batch silently violating it.
func (b *Batcher[T]) Batch(items []T) ([][]T, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var batches [][]T
	var current []T
	currentBytes := 0
	currentWeight := 0

	for _, item := range items {
		itemBytes := b.sizeOf(item)
		if b.maxBytes > 0 && itemBytes > b.maxBytes {
			return nil, fmt.Errorf("item exceeds max batch size: %d bytes (limit: %d)", itemBytes, b.maxBytes)
		}
		itemWeight := b.weightOf(item)

		wouldExceedSize := b.maxBytes > 0 && currentBytes+itemBytes > b.maxBytes
		wouldExceedTarget := b.targetSize > 0 && currentWeight+itemWeight > b.targetSize

		if len(current) > 0 && (wouldExceedSize || wouldExceedTarget) {
			batches = append(batches, current)
			current = nil
			currentBytes = 0
			currentWeight = 0
		}

		current = append(current, item)
		currentBytes += itemBytes
		currentWeight += itemWeight
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches, nil
}
