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
	"strings"

	"github.com/carverauto/orionsync/pkg/models"
)

const (
	pollingMethodExternal = "external"
	pollingMethodICMP     = "icmp"
	pollingMethodSNMP     = "snmp"
	pollingMethodWMI      = "wmi"
	pollingMethodAgent    = "agent"

	// defaultEngineID is the platform's default polling engine.
	defaultEngineID = 1

	defaultSNMPVersion = 2
	defaultSNMPPort    = 161
)

// buildProfile turns the request into a validated device profile, resolving
// the credential and polling engine names against the inventory. All
// failures wrap ErrValidation.
func (e *Engine) buildProfile(ctx context.Context, req *models.NodeRequest) (*models.DeviceProfile, error) {
	if req.IPAddress == "" {
		return nil, fmt.Errorf("%w: IP address is required", ErrValidation)
	}

	profile := &models.DeviceProfile{
		IPAddress: req.IPAddress,
		Caption:   captionFromName(req.NodeName),
		External:  req.PollingMethod == pollingMethodExternal,
	}

	// A dotted node name doubles as the DNS name.
	if strings.Contains(req.NodeName, ".") {
		profile.DNS = req.NodeName
	}

	if !profile.External && profile.Caption == "" {
		return nil, fmt.Errorf("%w: node name is required", ErrValidation)
	}

	switch req.PollingMethod {
	case pollingMethodExternal:
		// External devices are polled via ICMP internally; the External
		// flag stays set.
		profile.ObjectSubType = "ICMP"
	case pollingMethodICMP, pollingMethodWMI, pollingMethodAgent:
		profile.ObjectSubType = strings.ToUpper(req.PollingMethod)
	case pollingMethodSNMP:
		profile.ObjectSubType = "SNMP"
		profile.SNMP = snmpSettings(req)
	default:
		return nil, fmt.Errorf("%w: polling method is required [external, snmp, icmp, wmi, agent], got %q",
			ErrValidation, req.PollingMethod)
	}

	if req.CredentialName == "" {
		return nil, fmt.Errorf("%w: a credential name is required", ErrValidation)
	}

	credentialID, err := e.lookupCredentialID(ctx, req.CredentialName)
	if err != nil {
		return nil, err
	}

	profile.CredentialID = credentialID

	if req.PollingEngineName != "" {
		engineID, err := e.lookupEngineID(ctx, req.PollingEngineName)
		if err != nil {
			return nil, err
		}

		profile.EngineID = engineID
	} else {
		e.logger.Debug().Msg("Using default initial polling engine")

		profile.EngineID = defaultEngineID
	}

	if req.DiscoveryPollingEngineName != "" && req.DiscoveryPollingEngineName != req.PollingEngineName {
		discoveryEngineID, err := e.lookupEngineID(ctx, req.DiscoveryPollingEngineName)
		if err != nil {
			return nil, err
		}

		profile.DiscoveryEngineID = discoveryEngineID
	} else {
		profile.DiscoveryEngineID = profile.EngineID
	}

	// Final gate for add: even external devices need a caption to be
	// discoverable by name.
	if req.State == models.StatePresent && profile.Caption == "" {
		return nil, fmt.Errorf("%w: node name is required", ErrValidation)
	}

	return profile, nil
}

// snmpSettings attaches the SNMP fields, defaulting only the values that
// are entirely absent from the request.
func snmpSettings(req *models.NodeRequest) *models.SNMPSettings {
	settings := &models.SNMPSettings{
		Version:            defaultSNMPVersion,
		Port:               defaultSNMPPort,
		Allow64BitCounters: true,
	}

	if req.SNMPVersion != nil {
		settings.Version = *req.SNMPVersion
	}

	if req.SNMPPort != nil {
		settings.Port = *req.SNMPPort
	}

	if req.SNMPAllow64 != nil {
		settings.Allow64BitCounters = *req.SNMPAllow64
	}

	return settings
}

// captionFromName derives the node caption from the first label of the
// node name (the text before the first dot).
func captionFromName(nodeName string) string {
	caption, _, _ := strings.Cut(nodeName, ".")
	return caption
}

type credentialRow struct {
	ID int `json:"ID"`
}

func (e *Engine) lookupCredentialID(ctx context.Context, name string) (int, error) {
	var rows []credentialRow

	err := e.client.Query(ctx,
		"SELECT ID FROM Orion.Credential WHERE Name = @credential_name",
		map[string]interface{}{"credential_name": name}, &rows)
	if err != nil {
		return 0, fmt.Errorf("failed to query credentials: %w", err)
	}

	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: no credential named %q", ErrValidation, name)
	}

	return rows[0].ID, nil
}

type engineRow struct {
	EngineID   int    `json:"EngineID"`
	ServerName string `json:"ServerName"`
}

func (e *Engine) lookupEngineID(ctx context.Context, name string) (int, error) {
	var rows []engineRow

	err := e.client.Query(ctx,
		"SELECT EngineID, ServerName FROM Orion.Engines WHERE ServerName = @engine_name",
		map[string]interface{}{"engine_name": name}, &rows)
	if err != nil {
		return 0, fmt.Errorf("failed to query polling engines: %w", err)
	}

	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: no polling engine named %q", ErrValidation, name)
	}

	return rows[0].EngineID, nil
}
