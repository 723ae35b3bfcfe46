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
	"regexp"

	"github.com/carverauto/orionsync/pkg/models"
)

// maxVolumeRemovals caps how many volumes one reconciliation may delete.
// More matches than this aborts the operation before any deletion, as a
// blast-radius guard against an overly broad filter.
const maxVolumeRemovals = 50

// reconcileDiscovered applies deterministic corrections after a successful
// discovery: caption correction, volume exclusion, DNS assignment, custom
// property propagation, and final polling engine relocation.
func (e *Engine) reconcileDiscovered(
	ctx context.Context,
	req *models.NodeRequest,
	profile *models.DeviceProfile,
	node *models.Node,
	outcome *models.DiscoveryOutcome,
) error {
	if node.Caption != profile.Caption {
		if err := e.client.Update(ctx, node.URI, map[string]interface{}{"Caption": profile.Caption}); err != nil {
			return fmt.Errorf("%w: failed to update node caption from %q to %q: %w",
				ErrReconciliation, node.Caption, profile.Caption, err)
		}

		e.logger.Info().
			Str("old_caption", node.Caption).
			Str("new_caption", profile.Caption).
			Msg("Corrected node caption")

		node.Caption = profile.Caption
	}

	if err := e.removeFilteredVolumes(ctx, req, node, outcome); err != nil {
		return err
	}

	if profile.DNS != "" {
		if err := e.client.Update(ctx, node.URI, map[string]interface{}{"DNS": profile.DNS}); err != nil {
			return fmt.Errorf("%w: failed to set DNS name %q: %w", ErrReconciliation, profile.DNS, err)
		}
	}

	if !profile.External {
		if err := e.propagateCustomProperties(ctx, req, node); err != nil {
			return err
		}
	}

	// Nodes can be discovered on one engine to work around discovery
	// issues, then operated from another. Relocate last, once the node is
	// fully corrected.
	if profile.DiscoveryEngineID != profile.EngineID {
		if err := e.client.Update(ctx, node.URI, map[string]interface{}{"EngineID": profile.EngineID}); err != nil {
			return fmt.Errorf("%w: failed to move node to final polling engine %d: %w",
				ErrReconciliation, profile.EngineID, err)
		}

		e.logger.Info().
			Int("discovery_engine_id", profile.DiscoveryEngineID).
			Int("engine_id", profile.EngineID).
			Msg("Relocated node to final polling engine")
	}

	return nil
}

type discoveryLogItemRow struct {
	EntityType  string `json:"EntityType"`
	DisplayName string `json:"DisplayName"`
	NetObjectID string `json:"NetObjectID"`
}

type volumeURIRow struct {
	URI string `json:"Uri"`
}

// removeFilteredVolumes deletes discovered volumes whose display names
// match a caller-supplied filter, anchored as "<nodeName> - <filter>".
// The match set is computed in full before anything is deleted so the
// safety cap is all-or-nothing.
func (e *Engine) removeFilteredVolumes(
	ctx context.Context,
	req *models.NodeRequest,
	node *models.Node,
	outcome *models.DiscoveryOutcome,
) error {
	if len(req.VolumeFilters) == 0 {
		return nil
	}

	patterns := make([]*regexp.Regexp, 0, len(req.VolumeFilters))

	for _, filter := range req.VolumeFilters {
		pattern, err := regexp.Compile(fmt.Sprintf("^%s - %s", req.NodeName, filter))
		if err != nil {
			return fmt.Errorf("%w: invalid volume filter %q: %w", ErrValidation, filter, err)
		}

		patterns = append(patterns, pattern)
	}

	var items []discoveryLogItemRow

	err := e.client.Query(ctx,
		"SELECT EntityType, DisplayName, NetObjectID FROM Orion.DiscoveryLogItems WHERE BatchID = @batch_id",
		map[string]interface{}{"batch_id": outcome.BatchID}, &items)
	if err != nil {
		return fmt.Errorf("%w: failed to query discovered objects: %w", ErrReconciliation, err)
	}

	var matched []discoveryLogItemRow

	for _, item := range items {
		if item.EntityType != "Orion.Volumes" {
			continue
		}

		for _, pattern := range patterns {
			if pattern.MatchString(item.DisplayName) {
				matched = append(matched, item)
				break
			}
		}
	}

	if len(matched) > maxVolumeRemovals {
		return fmt.Errorf("%w: %d volumes matched, limit is %d - aborting for safety",
			ErrSafetyLimit, len(matched), maxVolumeRemovals)
	}

	for _, volume := range matched {
		var rows []volumeURIRow

		err := e.client.Query(ctx,
			"SELECT Uri FROM Orion.Volumes WHERE NodeID = @node_id AND Concat('V:', ToString(VolumeID)) = @net_object_id",
			map[string]interface{}{"node_id": node.NodeID, "net_object_id": volume.NetObjectID}, &rows)
		if err != nil {
			return fmt.Errorf("%w: failed to query URI for volume to remove: %w", ErrReconciliation, err)
		}

		if len(rows) == 0 || rows[0].URI == "" {
			e.logger.Debug().
				Str("display_name", volume.DisplayName).
				Msg("Volume has no URI, skipping removal")

			continue
		}

		if err := e.client.Delete(ctx, rows[0].URI); err != nil {
			return fmt.Errorf("%w: failed to delete volume %q: %w", ErrReconciliation, volume.DisplayName, err)
		}

		e.logger.Info().
			Str("display_name", volume.DisplayName).
			Msg("Removed filtered volume")
	}

	return nil
}

// propagateCustomProperties pushes each custom property as an individual
// update to the node's custom-properties sub-resource. The first failure
// aborts the remaining propagation.
func (e *Engine) propagateCustomProperties(ctx context.Context, req *models.NodeRequest, node *models.Node) error {
	for key, value := range req.CustomProperties {
		err := e.client.Update(ctx, node.URI+"/CustomProperties", map[string]interface{}{key: value})
		if err != nil {
			return fmt.Errorf("%w: failed to set custom property %q: %w", ErrReconciliation, key, err)
		}
	}

	return nil
}
