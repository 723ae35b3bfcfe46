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
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/orionsync/pkg/models"
)

// These constants control how many times and at what interval the engine
// checks the status of the Orion discovery job. Total wait is retries
// multiplied by the sleep interval.
const (
	discoveryStatusCheckRetries = 60
	discoveryRetrySleep         = 3 * time.Second
)

// These control the discovery timeouts within Orion itself.
const (
	discoveryJobTimeoutSecs     = 300
	discoverySearchTimeoutMS    = 20000
	discoverySNMPTimeoutMS      = 30000
	discoverySNMPRetries        = 2
	discoveryRepeatIntervalMS   = 3000
	discoveryWMIRetriesCount    = 2
	discoveryWMIRetryIntervalMS = 2000
)

// discoveryPhase is the state of the discovery poll state machine. The
// only suspension point is the ticker wait in awaitDiscovery.
type discoveryPhase int

const (
	phaseSubmitted discoveryPhase = iota
	phasePolling
	phaseFinished
	phaseTimedOut
	phaseFailed
)

// addNode onboards the node via the Orion discovery workflow. If the node
// already exists, it returns unchanged with the current node facts.
func (e *Engine) addNode(ctx context.Context, req *models.NodeRequest) (*models.Result, error) {
	node, err := e.lookupNode(ctx, req)
	if err != nil {
		return nil, err
	}

	if node != nil {
		return &models.Result{Changed: false, Node: node}, nil
	}

	profile, err := e.buildProfile(ctx, req)
	if err != nil {
		return nil, err
	}

	discovered, outcome, err := e.runDiscovery(ctx, req, profile)
	if err != nil {
		return nil, err
	}

	if err := e.reconcileDiscovered(ctx, req, profile, discovered, outcome); err != nil {
		return nil, err
	}

	// Re-resolve for the full fact payload; the resolution join only
	// returns a subset of the node fields.
	node, err = e.lookupNodeByID(ctx, discovered.NodeID)
	if err != nil {
		return nil, err
	}

	if node == nil {
		node = discovered
	}

	return &models.Result{
		Changed: true,
		Message: fmt.Sprintf("%s has been discovered and imported", node.Caption),
		Node:    node,
	}, nil
}

// runDiscovery builds and submits the discovery job, waits for it to
// terminate, interprets the result code, and resolves the new node.
func (e *Engine) runDiscovery(
	ctx context.Context,
	req *models.NodeRequest,
	profile *models.DeviceProfile,
) (*models.Node, *models.DiscoveryOutcome, error) {
	corePluginConfig, err := e.createCorePluginConfig(ctx, req, profile)
	if err != nil {
		return nil, nil, err
	}

	interfacesPluginConfig, err := e.createInterfacesPluginConfig(ctx, req, profile)
	if err != nil {
		return nil, nil, err
	}

	jobName := discoveryJobName(req.NodeName, e.clock.Now())
	spec := e.buildJobSpec(jobName, req, profile, corePluginConfig, interfacesPluginConfig)

	var profileID int

	if err := e.client.Invoke(ctx, "Orion.Discovery", "StartDiscovery", []interface{}{spec}, &profileID); err != nil {
		return nil, nil, &DiscoveryError{
			Err:     fmt.Errorf("%w: %w", ErrDiscoverySubmit, err),
			Profile: profile,
		}
	}

	e.logger.Info().
		Int("profile_id", profileID).
		Str("job_name", jobName).
		Msg("Discovery job submitted")

	phase, err := e.awaitDiscovery(ctx, profileID)
	if err != nil {
		return nil, nil, &DiscoveryError{Err: err, Profile: profile}
	}

	if phase == phaseTimedOut {
		return nil, nil, &DiscoveryError{Err: ErrDiscoveryTimeout, Profile: profile}
	}

	outcome, err := e.readDiscoveryOutcome(ctx, profileID)
	if err != nil {
		return nil, nil, &DiscoveryError{Err: err, Profile: profile}
	}

	if outcome.Result.Failed() {
		return nil, nil, &DiscoveryError{Err: ErrDiscoveryFailed, Profile: profile, Outcome: outcome}
	}

	node, err := e.resolveDiscoveredNode(ctx, jobName)
	if err != nil {
		return nil, nil, &DiscoveryError{Err: err, Profile: profile, Outcome: outcome}
	}

	return node, outcome, nil
}

func (e *Engine) createCorePluginConfig(
	ctx context.Context, req *models.NodeRequest, profile *models.DeviceProfile,
) (json.RawMessage, error) {
	coreContext := models.CorePluginContext{
		BulkList:                    []models.DiscoveryAddress{{Address: req.IPAddress}},
		Credentials:                 []models.DiscoveryCredential{{CredentialID: profile.CredentialID, Order: 1}},
		WmiRetriesCount:             discoveryWMIRetriesCount,
		WmiRetryIntervalMiliseconds: discoveryWMIRetryIntervalMS,
	}

	var config json.RawMessage

	err := e.client.Invoke(ctx, "Orion.Discovery", "CreateCorePluginConfiguration",
		[]interface{}{coreContext}, &config)
	if err != nil {
		return nil, &DiscoveryError{
			Err:     fmt.Errorf("%w: failed to create core plugin configuration: %w", ErrDiscoverySubmit, err),
			Profile: profile,
		}
	}

	return config, nil
}

// baselineInterfaceFilters excludes null, vlan, and loopback interface
// descriptions, plus interfaces with no description at all, from
// auto-import. Caller-supplied filters extend this baseline.
func baselineInterfaceFilters() []models.ExpressionFilter {
	return []models.ExpressionFilter{
		{Prop: "Descr", Op: "!Any", Val: "null"},
		{Prop: "Descr", Op: "!Any", Val: "vlan"},
		{Prop: "Descr", Op: "!Any", Val: "loopback"},
		{Prop: "Descr", Op: "!Regex", Val: "^$"},
	}
}

func (e *Engine) createInterfacesPluginConfig(
	ctx context.Context, req *models.NodeRequest, profile *models.DeviceProfile,
) (json.RawMessage, error) {
	interfacesContext := models.InterfacesPluginContext{
		AutoImportStatus:           []string{"Up"},
		AutoImportVlanPortTypes:    []string{"Trunk", "Access", "Unknown"},
		AutoImportVirtualTypes:     []string{"Physical", "Virtual", "Unknown"},
		AutoImportExpressionFilter: append(baselineInterfaceFilters(), req.InterfaceFilters...),
	}

	var config json.RawMessage

	err := e.client.Invoke(ctx, "Orion.NPM.Interfaces", "CreateInterfacesPluginConfiguration",
		[]interface{}{interfacesContext}, &config)
	if err != nil {
		return nil, &DiscoveryError{
			Err:     fmt.Errorf("%w: failed to create interfaces plugin configuration: %w", ErrDiscoverySubmit, err),
			Profile: profile,
		}
	}

	return config, nil
}

func (e *Engine) buildJobSpec(
	jobName string,
	req *models.NodeRequest,
	profile *models.DeviceProfile,
	corePluginConfig, interfacesPluginConfig json.RawMessage,
) *models.DiscoveryJobSpec {
	snmpPort := defaultSNMPPort
	preferredSNMPVersion := "SNMP2c"

	if profile.SNMP != nil {
		snmpPort = profile.SNMP.Port

		if profile.SNMP.Version == 3 {
			preferredSNMPVersion = "SNMP3"
		}
	}

	return &models.DiscoveryJobSpec{
		Name:                      jobName,
		Description:               "Automated discovery from orionsync",
		EngineID:                  profile.DiscoveryEngineID,
		JobTimeoutSeconds:         discoveryJobTimeoutSecs,
		SearchTimeoutMiliseconds:  discoverySearchTimeoutMS,
		SnmpTimeoutMiliseconds:    discoverySNMPTimeoutMS,
		RepeatIntervalMiliseconds: discoveryRepeatIntervalMS,
		SnmpRetries:               discoverySNMPRetries,
		SnmpPort:                  snmpPort,
		HopCount:                  0,
		PreferredSnmpVersion:      preferredSNMPVersion,
		DisableIcmp:               false,
		AllowDuplicateNodes:       false,
		IsAutoImport:              true,
		IsHidden:                  false,
		PluginConfigurations: []models.PluginConfiguration{
			{PluginConfigurationItem: corePluginConfig},
			{PluginConfigurationItem: interfacesPluginConfig},
		},
	}
}

// discoveryJobName derives a timestamp-qualified unique job name so that
// concurrent discoveries of different targets never collide.
func discoveryJobName(nodeName string, now time.Time) string {
	return fmt.Sprintf("orionsync.%s.%s.%s",
		nodeName, now.UTC().Format(time.RFC3339), uuid.NewString())
}

type discoveryStatusRow struct {
	Status int `json:"Status"`
}

// awaitDiscovery polls the discovery job status at a fixed interval until
// it finishes, the status query returns no rows (the profile was reaped),
// or the retry ceiling is exceeded. Context cancellation aborts the wait.
func (e *Engine) awaitDiscovery(ctx context.Context, profileID int) (discoveryPhase, error) {
	ticker := e.clock.Ticker(discoveryRetrySleep)
	defer ticker.Stop()

	phase := phaseSubmitted

	for attempt := 0; attempt < discoveryStatusCheckRetries && phase != phaseFinished; attempt++ {
		select {
		case <-ctx.Done():
			return phaseFailed, ctx.Err()
		case <-ticker.Chan():
		}

		phase = phasePolling

		var rows []discoveryStatusRow

		err := e.client.Query(ctx,
			"SELECT Status FROM Orion.DiscoveryProfiles WHERE ProfileID = @profile_id",
			map[string]interface{}{"profile_id": profileID}, &rows)
		if err != nil {
			return phaseFailed, fmt.Errorf("failed to query node discovery status: %w", err)
		}

		// No rows means the profile is gone: the job terminated and Orion
		// already reaped it.
		if len(rows) == 0 || models.DiscoveryStatus(rows[0].Status) == models.DiscoveryStatusFinished {
			phase = phaseFinished
			continue
		}

		e.logger.Debug().
			Int("profile_id", profileID).
			Int("attempt", attempt+1).
			Str("status", models.DiscoveryStatus(rows[0].Status).String()).
			Msg("Discovery job still running")
	}

	if phase != phaseFinished {
		phase = phaseTimedOut
	}

	return phase, nil
}

type discoveryLogRow struct {
	Result            int    `json:"Result"`
	ResultDescription string `json:"ResultDescription"`
	ErrorMessage      string `json:"ErrorMessage"`
	BatchID           string `json:"BatchID"`
}

func (e *Engine) readDiscoveryOutcome(ctx context.Context, profileID int) (*models.DiscoveryOutcome, error) {
	var rows []discoveryLogRow

	err := e.client.Query(ctx,
		"SELECT Result, ResultDescription, ErrorMessage, BatchID FROM Orion.DiscoveryLogs WHERE ProfileID = @profile_id",
		map[string]interface{}{"profile_id": profileID}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovery logs: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no discovery log entry for profile %d", ErrDiscoveryFailed, profileID)
	}

	return &models.DiscoveryOutcome{
		ProfileID:         profileID,
		Result:            models.DiscoveryStatus(rows[0].Result),
		ResultDescription: rows[0].ResultDescription,
		ErrorMessage:      rows[0].ErrorMessage,
		BatchID:           rows[0].BatchID,
	}, nil
}

type discoveredNodeRow struct {
	NodeID  int    `json:"NodeID"`
	Caption string `json:"Caption"`
	URI     string `json:"Uri"`
}

// resolveDiscoveredNode joins the job's profile name through the
// discovered-node records to the authoritative node inventory. The NodeID
// in Orion.DiscoveredNodes has no bearing on the actual NodeID of the
// imported host, hence the join on DNS or SysName.
func (e *Engine) resolveDiscoveredNode(ctx context.Context, jobName string) (*models.Node, error) {
	var rows []discoveredNodeRow

	err := e.client.Query(ctx,
		"SELECT n.NodeID, Caption, n.Uri FROM Orion.DiscoveryProfiles dp "+
			"JOIN Orion.DiscoveredNodes dn ON dn.ProfileID = dp.ProfileID "+
			"JOIN Orion.Nodes n ON n.DNS = dn.DNS OR n.Caption = dn.SysName "+
			"WHERE dp.Name = @discovery_name",
		map[string]interface{}{"discovery_name": jobName}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovered nodes: %w", err)
	}

	if len(rows) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one match for job %q, got %d: %+v",
			ErrDiscoveryResolution, jobName, len(rows), rows)
	}

	return &models.Node{
		NodeID:      rows[0].NodeID,
		Caption:     rows[0].Caption,
		NetObjectID: fmt.Sprintf("N:%d", rows[0].NodeID),
		URI:         rows[0].URI,
	}, nil
}
