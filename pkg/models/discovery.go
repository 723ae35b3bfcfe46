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

package models

import "encoding/json"

// DiscoveryStatus enumerates the Orion discovery job status and result
// codes. The same code space is used for the live job status and for the
// terminal result in the discovery log.
type DiscoveryStatus int

const (
	DiscoveryStatusUnknown DiscoveryStatus = iota
	DiscoveryStatusInProgress
	DiscoveryStatusFinished
	DiscoveryStatusError
	DiscoveryStatusNotScheduled
	DiscoveryStatusScheduled
	DiscoveryStatusNotCompleted
	DiscoveryStatusCanceling
	DiscoveryStatusReadyForImport
)

func (s DiscoveryStatus) String() string {
	switch s {
	case DiscoveryStatusUnknown:
		return "Unknown"
	case DiscoveryStatusInProgress:
		return "InProgress"
	case DiscoveryStatusFinished:
		return "Finished"
	case DiscoveryStatusError:
		return "Error"
	case DiscoveryStatusNotScheduled:
		return "NotScheduled"
	case DiscoveryStatusScheduled:
		return "Scheduled"
	case DiscoveryStatusNotCompleted:
		return "NotCompleted"
	case DiscoveryStatusCanceling:
		return "Canceling"
	case DiscoveryStatusReadyForImport:
		return "ReadyForImport"
	default:
		return "Invalid"
	}
}

// Failed reports whether s is one of the terminal result codes that mean
// the discovery job did not complete successfully. Any other code is
// treated as success.
func (s DiscoveryStatus) Failed() bool {
	switch s {
	case DiscoveryStatusUnknown, DiscoveryStatusError, DiscoveryStatusNotCompleted, DiscoveryStatusCanceling:
		return true
	default:
		return false
	}
}

// DiscoveryAddress is a single target address in the core plugin context.
type DiscoveryAddress struct {
	Address string `json:"Address"`
}

// DiscoveryCredential references an existing Orion credential by id, with
// its position in the credential try order.
type DiscoveryCredential struct {
	CredentialID int `json:"CredentialID"`
	Order        int `json:"Order"`
}

// CorePluginContext is the request payload for
// Orion.Discovery.CreateCorePluginConfiguration.
type CorePluginContext struct {
	BulkList                    []DiscoveryAddress    `json:"BulkList"`
	Credentials                 []DiscoveryCredential `json:"Credentials"`
	WmiRetriesCount             int                   `json:"WmiRetriesCount"`
	WmiRetryIntervalMiliseconds int                   `json:"WmiRetryIntervalMiliseconds"`
}

// InterfacesPluginContext is the request payload for
// Orion.NPM.Interfaces.CreateInterfacesPluginConfiguration. It controls
// which discovered interfaces are auto-imported.
type InterfacesPluginContext struct {
	AutoImportStatus           []string           `json:"AutoImportStatus"`
	AutoImportVlanPortTypes    []string           `json:"AutoImportVlanPortTypes"`
	AutoImportVirtualTypes     []string           `json:"AutoImportVirtualTypes"`
	AutoImportExpressionFilter []ExpressionFilter `json:"AutoImportExpressionFilter"`
}

// PluginConfiguration wraps an opaque, server-generated plugin
// configuration blob for embedding in a discovery job spec.
type PluginConfiguration struct {
	PluginConfigurationItem json.RawMessage `json:"PluginConfigurationItem"`
}

// DiscoveryJobSpec is the profile submitted to Orion.Discovery.StartDiscovery.
// Field names and the misspelled "Miliseconds" suffixes follow the SWIS
// schema exactly.
type DiscoveryJobSpec struct {
	Name                      string                `json:"Name"`
	Description               string                `json:"Description"`
	EngineID                  int                   `json:"EngineID"`
	JobTimeoutSeconds         int                   `json:"JobTimeoutSeconds"`
	SearchTimeoutMiliseconds  int                   `json:"SearchTimeoutMiliseconds"`
	SnmpTimeoutMiliseconds    int                   `json:"SnmpTimeoutMiliseconds"`
	RepeatIntervalMiliseconds int                   `json:"RepeatIntervalMiliseconds"`
	SnmpRetries               int                   `json:"SnmpRetries"`
	SnmpPort                  int                   `json:"SnmpPort"`
	HopCount                  int                   `json:"HopCount"`
	PreferredSnmpVersion      string                `json:"PreferredSnmpVersion"`
	DisableIcmp               bool                  `json:"DisableIcmp"`
	AllowDuplicateNodes       bool                  `json:"AllowDuplicateNodes"`
	IsAutoImport              bool                  `json:"IsAutoImport"`
	IsHidden                  bool                  `json:"IsHidden"`
	PluginConfigurations      []PluginConfiguration `json:"PluginConfigurations"`
}

// DiscoveryOutcome is the terminal record of a discovery job, read from
// Orion.DiscoveryLogs once the job stops.
type DiscoveryOutcome struct {
	ProfileID         int             `json:"profile_id"`
	Result            DiscoveryStatus `json:"result"`
	ResultDescription string          `json:"result_description,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	BatchID           string          `json:"batch_id,omitempty"`
}
