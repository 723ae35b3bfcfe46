/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/orionsync/pkg/models"
)

func TestApplyRejectsInvalidState(t *testing.T) {
	engine := newTestEngine(&fakeSWIS{})

	for _, state := range []models.LifecycleState{"", "presentt", "managed"} {
		_, err := engine.Apply(context.Background(), &models.NodeRequest{State: state, NodeID: 42})
		assert.ErrorIs(t, err, ErrInvalidState, "state %q", state)
	}
}

func TestRemoveNode(t *testing.T) {
	fake := &fakeSWIS{nodes: []nodeRow{managedNodeRow()}}
	engine := newTestEngine(fake)

	result, err := engine.Apply(context.Background(), &models.NodeRequest{
		State:  models.StateAbsent,
		NodeID: 42,
	})
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, "host1 has been removed", result.Message)
	assert.Equal(t, []string{testNodeURI}, fake.deletes)
}

func TestRemoveMissingNodeIsNoOp(t *testing.T) {
	fake := &fakeSWIS{}
	engine := newTestEngine(fake)

	req := &models.NodeRequest{State: models.StateAbsent, NodeName: "ghost.example.com"}

	// Repeating the removal must keep reporting no change.
	for i := 0; i < 2; i++ {
		result, err := engine.Apply(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, result.Changed)
	}

	assert.Empty(t, fake.deletes)
}

func TestRemoveNodeDeleteFailure(t *testing.T) {
	fake := &fakeSWIS{
		nodes:     []nodeRow{managedNodeRow()},
		deleteErr: errors.New("access denied"),
	}
	engine := newTestEngine(fake)

	_, err := engine.Apply(context.Background(), &models.NodeRequest{
		State:  models.StateAbsent,
		NodeID: 42,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error removing node host1")
}
