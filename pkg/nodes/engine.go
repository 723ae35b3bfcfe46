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

// Package nodes implements the node lifecycle orchestration engine: it
// reconciles the desired state of a monitored device against the Orion
// inventory, driving discovery, removal, and the managed/unmanaged and
// muted/unmuted suppression states.
package nodes

import (
	"context"
	"fmt"

	"github.com/carverauto/orionsync/pkg/logger"
	"github.com/carverauto/orionsync/pkg/models"
	"github.com/carverauto/orionsync/pkg/swis"
)

// Engine drives node lifecycle operations against one Orion instance.
//
// The engine holds no state between operations; every call re-resolves the
// node from the inventory. It is not safe against concurrent operations on
// the same target node or address - callers must serialize per target.
type Engine struct {
	client swis.Client
	clock  Clock
	logger logger.Logger
}

// New creates an Engine backed by the given SWIS client.
func New(client swis.Client, log logger.Logger) *Engine {
	return NewWithClock(client, realClock{}, log)
}

// NewWithClock creates an Engine with a caller-supplied clock. Tests use
// this to drive the discovery poll loop without sleeping.
func NewWithClock(client swis.Client, clock Clock, log logger.Logger) *Engine {
	return &Engine{
		client: client,
		clock:  clock,
		logger: log,
	}
}

// Apply reconciles the node identified by req toward req.State and reports
// whether anything changed. All failures are terminal for the invocation;
// nothing is retried internally except the discovery status poll.
func (e *Engine) Apply(ctx context.Context, req *models.NodeRequest) (*models.Result, error) {
	if !req.State.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, req.State)
	}

	e.logger.Info().
		Str("state", string(req.State)).
		Str("node_name", req.NodeName).
		Str("ip_address", req.IPAddress).
		Msg("Applying node lifecycle state")

	switch req.State {
	case models.StatePresent:
		return e.addNode(ctx, req)
	case models.StateAbsent:
		return e.removeNode(ctx, req)
	case models.StateRemanaged:
		return e.remanageNode(ctx, req)
	case models.StateUnmanaged:
		return e.unmanageNode(ctx, req)
	case models.StateMuted:
		return e.muteNode(ctx, req)
	case models.StateUnmuted:
		return e.unmuteNode(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, req.State)
	}
}

// removeNode deletes the node if present. A missing node is treated as
// already satisfied, not an error.
func (e *Engine) removeNode(ctx context.Context, req *models.NodeRequest) (*models.Result, error) {
	node, err := e.lookupNode(ctx, req)
	if err != nil {
		return nil, err
	}

	if node == nil {
		return &models.Result{Changed: false}, nil
	}

	if err := e.client.Delete(ctx, node.URI); err != nil {
		return nil, fmt.Errorf("error removing node %s: %w", node.Caption, err)
	}

	e.logger.Info().
		Int("node_id", node.NodeID).
		Str("caption", node.Caption).
		Msg("Removed node from inventory")

	return &models.Result{
		Changed: true,
		Message: fmt.Sprintf("%s has been removed", node.Caption),
		Node:    node,
	}, nil
}
