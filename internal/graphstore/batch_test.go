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

import "testing"

func TestBatcher_Batch_SplitsByTargetSize(t *testing.T) {
	b := NewBatcher(2, 10000, func(int) int { return 1 })

	batches, err := b.Batch([]int{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[1]) != 2 || len(batches[2]) != 1 {
		t.Errorf("expected batch sizes [2,2,1], got [%d,%d,%d]", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestBatcher_Batch_SplitsByByteSize(t *testing.T) {
	b := NewBatcher(100, 10, func(v int) int { return v })

	batches, err := b.Batch([]int{4, 4, 4, 4})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	// 4+4=8 fits, +4 would be 12 > 10, so the third item starts a new batch.
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Errorf("expected first batch to hold 2 items, got %d", len(batches[0]))
	}
}

func TestBatcher_Batch_OversizedItemErrors(t *testing.T) {
	b := NewBatcher(100, 10, func(v int) int { return v })

	_, err := b.Batch([]int{20})
	if err == nil {
		t.Fatal("expected error for item exceeding max batch size")
	}
}

func TestBatcher_Batch_Empty(t *testing.T) {
	b := NewBatcher(10, 1000, func(int) int { return 1 })

	batches, err := b.Batch(nil)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if batches != nil {
		t.Errorf("expected nil batches for empty input, got %v", batches)
	}
}

func TestBatcher_Batch_NoTargetSizeOnlyByteBound(t *testing.T) {
	b := NewBatcher(0, 5, func(int) int { return 2 })

	batches, err := b.Batch([]int{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	// Byte budget of 5 holds at most two 2-byte items per batch (4 <= 5, +2 = 6 > 5).
	for _, batch := range batches {
		if len(batch) > 2 {
			t.Errorf("batch exceeded expected byte-bounded size: %v", batch)
		}
	}
}
