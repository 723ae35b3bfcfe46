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
	"fmt"
	"time"

	"github.com/carverauto/orionsync/pkg/models"
)

// defaultSuppressionDuration is the window length when unmanage_until is
// not given: 24 hours from now.
const defaultSuppressionDuration = 24 * time.Hour

// suppressionWindow computes the requested window, defaulting the start to
// now (UTC) and the end to now + 24h. Bounds are normalized to UTC
// instants so equality checks never depend on string representation.
func (e *Engine) suppressionWindow(req *models.NodeRequest) (models.SuppressionWindow, error) {
	now := e.clock.Now().UTC()

	win := models.SuppressionWindow{
		From:  now,
		Until: now.Add(defaultSuppressionDuration),
	}

	if req.UnmanageFrom != "" {
		from, err := parseOrionTime(req.UnmanageFrom)
		if err != nil {
			return win, fmt.Errorf("%w: invalid unmanage_from %q: %w", ErrValidation, req.UnmanageFrom, err)
		}

		win.From = from
	}

	if req.UnmanageUntil != "" {
		until, err := parseOrionTime(req.UnmanageUntil)
		if err != nil {
			return win, fmt.Errorf("%w: invalid unmanage_until %q: %w", ErrValidation, req.UnmanageUntil, err)
		}

		win.Until = until
	}

	return win, nil
}

// orionTimestamp renders a UTC instant in the ISO-8601 'Z'-suffix form the
// Orion verbs expect.
func orionTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// unmanageNode suspends polling for the node over the requested window.
// A missing node is fatal. If the node is already unmanaged over exactly
// the requested window, the operation is a no-op.
func (e *Engine) unmanageNode(ctx context.Context, req *models.NodeRequest) (*models.Result, error) {
	node, err := e.lookupNode(ctx, req)
	if err != nil {
		return nil, err
	}

	if node == nil {
		return nil, ErrNodeNotFound
	}

	win, err := e.suppressionWindow(req)
	if err != nil {
		return nil, err
	}

	existing := models.SuppressionWindow{From: node.UnmanageFrom, Until: node.UnmanageUntil}
	if node.Unmanaged && existing.Equal(win) {
		return &models.Result{Changed: false, Node: node}, nil
	}

	err = e.client.Invoke(ctx, "Orion.Nodes", "Unmanage",
		[]interface{}{node.NetObjectID, orionTimestamp(win.From), orionTimestamp(win.Until), false}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unmanage %s: %w", node.Caption, err)
	}

	return &models.Result{
		Changed: true,
		Message: fmt.Sprintf("Node %s will be unmanaged from %s until %s",
			node.Caption, orionTimestamp(win.From), orionTimestamp(win.Until)),
		Node: node,
	}, nil
}

// remanageNode resumes polling for an unmanaged node. Unlike remove,
// remanaging an already-managed node is a failure, not a no-op.
func (e *Engine) remanageNode(ctx context.Context, req *models.NodeRequest) (*models.Result, error) {
	node, err := e.lookupNode(ctx, req)
	if err != nil {
		return nil, err
	}

	if node == nil {
		return nil, ErrNodeNotFound
	}

	if !node.Unmanaged {
		return nil, fmt.Errorf("%w: %s", ErrNotUnmanaged, node.Caption)
	}

	err = e.client.Invoke(ctx, "Orion.Nodes", "Remanage", []interface{}{node.NetObjectID}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to remanage %s: %w", node.Caption, err)
	}

	return &models.Result{
		Changed: true,
		Message: fmt.Sprintf("%s has been remanaged", node.Caption),
		Node:    node,
	}, nil
}

// suppressionStateRow mirrors one entry of
// Orion.AlertSuppression.GetAlertSuppressionState.
type suppressionStateRow struct {
	SuppressionMode int    `json:"SuppressionMode"`
	SuppressedFrom  string `json:"SuppressedFrom"`
	SuppressedUntil string `json:"SuppressedUntil"`
}

func (e *Engine) alertSuppressionState(ctx context.Context, nodeURI string) (*suppressionStateRow, error) {
	var states []suppressionStateRow

	err := e.client.Invoke(ctx, "Orion.AlertSuppression", "GetAlertSuppressionState",
		[]interface{}{[]string{nodeURI}}, &states)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert suppression state: %w", err)
	}

	if len(states) == 0 {
		return nil, fmt.Errorf("%w: no alert suppression state returned for %s", ErrNodeNotFound, nodeURI)
	}

	return &states[0], nil
}

// muteNode suppresses alerting for the node over the requested window.
// A missing node is a reported skip, not a failure: mute is routinely
// applied across fleets where some hosts are not monitored. The reported
// bounds are compared as parsed instants, so differing string renderings
// of the same moment never trigger a spurious update.
func (e *Engine) muteNode(ctx context.Context, req *models.NodeRequest) (*models.Result, error) {
	node, err := e.lookupNode(ctx, req)
	if err != nil {
		return nil, err
	}

	if node == nil {
		return &models.Result{Changed: false, Message: "Node not found, nothing to mute"}, nil
	}

	win, err := e.suppressionWindow(req)
	if err != nil {
		return nil, err
	}

	state, err := e.alertSuppressionState(ctx, node.URI)
	if err != nil {
		return nil, err
	}

	if current, ok := parseSuppressionWindow(state); ok && current.Equal(win) {
		return &models.Result{Changed: false, Node: node}, nil
	}

	err = e.client.Invoke(ctx, "Orion.AlertSuppression", "SuppressAlerts",
		[]interface{}{[]string{node.URI}, orionTimestamp(win.From), orionTimestamp(win.Until)}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to mute %s: %w", node.Caption, err)
	}

	return &models.Result{
		Changed: true,
		Message: fmt.Sprintf("Node %s will be muted from %s until %s",
			node.Caption, orionTimestamp(win.From), orionTimestamp(win.Until)),
		Node: node,
	}, nil
}

// parseSuppressionWindow converts the platform-reported bounds into a
// window, reporting ok=false when either bound is absent or unparseable.
func parseSuppressionWindow(state *suppressionStateRow) (models.SuppressionWindow, bool) {
	if state.SuppressedFrom == "" || state.SuppressedUntil == "" {
		return models.SuppressionWindow{}, false
	}

	from, err := parseOrionTime(state.SuppressedFrom)
	if err != nil {
		return models.SuppressionWindow{}, false
	}

	until, err := parseOrionTime(state.SuppressedUntil)
	if err != nil {
		return models.SuppressionWindow{}, false
	}

	return models.SuppressionWindow{From: from, Until: until}, true
}

// unmuteNode resumes alerting. Suppression mode 0 means the node is not
// suppressed, so unmute is a no-op.
func (e *Engine) unmuteNode(ctx context.Context, req *models.NodeRequest) (*models.Result, error) {
	node, err := e.lookupNode(ctx, req)
	if err != nil {
		return nil, err
	}

	if node == nil {
		return &models.Result{Changed: false, Message: "Node not found, nothing to unmute"}, nil
	}

	state, err := e.alertSuppressionState(ctx, node.URI)
	if err != nil {
		return nil, err
	}

	if state.SuppressionMode == 0 {
		return &models.Result{Changed: false, Node: node}, nil
	}

	err = e.client.Invoke(ctx, "Orion.AlertSuppression", "ResumeAlerts",
		[]interface{}{[]string{node.URI}}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unmute %s: %w", node.Caption, err)
	}

	return &models.Result{
		Changed: true,
		Message: fmt.Sprintf("%s has been unmuted", node.Caption),
		Node:    node,
	}, nil
}
