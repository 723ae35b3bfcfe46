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

const nodeSelectFields = "NodeID, Caption, DNS, IPAddress, Unmanaged, UnManageFrom, UnManageUntil, Uri"

// nodeRow mirrors one Orion.Nodes record as returned by SWIS.
type nodeRow struct {
	NodeID        int    `json:"NodeID"`
	Caption       string `json:"Caption"`
	DNS           string `json:"DNS"`
	IPAddress     string `json:"IPAddress"`
	Unmanaged     bool   `json:"Unmanaged"`
	UnManageFrom  string `json:"UnManageFrom"`
	UnManageUntil string `json:"UnManageUntil"`
	URI           string `json:"Uri"`
}

// lookupNode resolves the node identified by exactly one of node_id,
// ip_address, or node_name. A node name matches either the caption or the
// DNS name. Returns (nil, nil) when no inventory record matches.
func (e *Engine) lookupNode(ctx context.Context, req *models.NodeRequest) (*models.Node, error) {
	var (
		where  string
		params map[string]interface{}
	)

	switch {
	case req.NodeID != 0:
		where = "NodeID = @node_id"
		params = map[string]interface{}{"node_id": req.NodeID}
	case req.IPAddress != "":
		where = "IPAddress = @ip_address"
		params = map[string]interface{}{"ip_address": req.IPAddress}
	case req.NodeName != "":
		where = "Caption = @node_name OR DNS = @node_name"
		params = map[string]interface{}{"node_name": req.NodeName}
	default:
		return nil, ErrNoIdentifier
	}

	query := fmt.Sprintf("SELECT %s FROM Orion.Nodes WHERE %s", nodeSelectFields, where)

	var rows []nodeRow

	if err := e.client.Query(ctx, query, params, &rows); err != nil {
		return nil, fmt.Errorf("failed to query node: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return nodeFromRow(&rows[0])
}

// lookupNodeByID fetches the full node record for a known node id, used to
// return node facts after discovery resolves the new id.
func (e *Engine) lookupNodeByID(ctx context.Context, nodeID int) (*models.Node, error) {
	return e.lookupNode(ctx, &models.NodeRequest{NodeID: nodeID})
}

func nodeFromRow(row *nodeRow) (*models.Node, error) {
	unmanageFrom, err := parseOrionTime(row.UnManageFrom)
	if err != nil {
		return nil, fmt.Errorf("failed to parse UnManageFrom %q: %w", row.UnManageFrom, err)
	}

	unmanageUntil, err := parseOrionTime(row.UnManageUntil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse UnManageUntil %q: %w", row.UnManageUntil, err)
	}

	return &models.Node{
		NodeID:        row.NodeID,
		Caption:       row.Caption,
		DNSName:       row.DNS,
		IPAddress:     row.IPAddress,
		NetObjectID:   fmt.Sprintf("N:%d", row.NodeID),
		URI:           row.URI,
		Unmanaged:     row.Unmanaged,
		UnmanageFrom:  unmanageFrom,
		UnmanageUntil: unmanageUntil,
	}, nil
}

// orionTimeLayouts are the timestamp shapes SWIS is known to emit. Values
// without a zone designator are UTC.
var orionTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

// parseOrionTime parses a SWIS timestamp into a UTC instant.
func parseOrionTime(value string) (time.Time, error) {
	var lastErr error

	for _, layout := range orionTimeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}

		lastErr = err
	}

	return time.Time{}, lastErr
}
