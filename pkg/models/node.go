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

// Package models defines the data types shared across orionsync packages.
package models

import (
	"time"
)

// LifecycleState is the desired state requested for a node.
type LifecycleState string

const (
	StatePresent   LifecycleState = "present"
	StateAbsent    LifecycleState = "absent"
	StateRemanaged LifecycleState = "remanaged"
	StateUnmanaged LifecycleState = "unmanaged"
	StateMuted     LifecycleState = "muted"
	StateUnmuted   LifecycleState = "unmuted"
)

// Valid reports whether s is one of the recognized lifecycle states.
func (s LifecycleState) Valid() bool {
	switch s {
	case StatePresent, StateAbsent, StateRemanaged, StateUnmanaged, StateMuted, StateUnmuted:
		return true
	default:
		return false
	}
}

// Node is a monitored device record resolved from the Orion inventory.
// Nodes are only created remotely via discovery; there is no client-side
// construction path.
type Node struct {
	NodeID        int       `json:"node_id"`
	Caption       string    `json:"caption"`
	DNSName       string    `json:"dns_name,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	NetObjectID   string    `json:"net_object_id"`
	URI           string    `json:"uri"`
	Unmanaged     bool      `json:"unmanaged"`
	UnmanageFrom  time.Time `json:"unmanage_from"`
	UnmanageUntil time.Time `json:"unmanage_until"`
}

// SNMPSettings holds the SNMP-specific fields of a device profile. It is
// only attached when the polling method is snmp.
type SNMPSettings struct {
	Version            int  `json:"version"`
	Port               int  `json:"port"`
	Allow64BitCounters bool `json:"allow_64bit_counters"`
}

// DeviceProfile is the validated set of device properties used to drive
// discovery and post-discovery reconciliation. It is derived per request
// and never persisted.
type DeviceProfile struct {
	IPAddress         string        `json:"ip_address"`
	Caption           string        `json:"caption"`
	DNS               string        `json:"dns,omitempty"`
	ObjectSubType     string        `json:"object_sub_type"`
	External          bool          `json:"external"`
	SNMP              *SNMPSettings `json:"snmp,omitempty"`
	CredentialID      int           `json:"credential_id"`
	EngineID          int           `json:"engine_id"`
	DiscoveryEngineID int           `json:"discovery_engine_id"`
}

// ExpressionFilter is a single Orion discovery expression filter, e.g.
// {"Prop": "Descr", "Op": "!Any", "Val": "vlan"}.
type ExpressionFilter struct {
	Prop string `json:"Prop"`
	Op   string `json:"Op"`
	Val  string `json:"Val"`
}

// NodeRequest is the flat option set a caller supplies for one lifecycle
// operation. SNMP fields are pointers so that defaults apply only when a
// value is entirely absent, not when it is explicitly falsy.
type NodeRequest struct {
	State                      LifecycleState     `json:"state"`
	NodeID                     int                `json:"node_id,omitempty"`
	IPAddress                  string             `json:"ip_address,omitempty"`
	NodeName                   string             `json:"node_name,omitempty"`
	UnmanageFrom               string             `json:"unmanage_from,omitempty"`
	UnmanageUntil              string             `json:"unmanage_until,omitempty"`
	PollingMethod              string             `json:"polling_method,omitempty"`
	PollingEngineName          string             `json:"polling_engine_name,omitempty"`
	DiscoveryPollingEngineName string             `json:"discovery_polling_engine_name,omitempty"`
	SNMPVersion                *int               `json:"snmp_version,omitempty"`
	SNMPPort                   *int               `json:"snmp_port,omitempty"`
	SNMPAllow64                *bool              `json:"snmp_allow_64,omitempty"`
	CredentialName             string             `json:"credential_name,omitempty"`
	InterfaceFilters           []ExpressionFilter `json:"interface_filters,omitempty"`
	VolumeFilters              []string           `json:"volume_filters,omitempty"`
	CustomProperties           map[string]string  `json:"custom_properties,omitempty"`
}

// Result is the outcome of one lifecycle operation.
type Result struct {
	Changed bool   `json:"changed"`
	Message string `json:"message,omitempty"`
	Node    *Node  `json:"node,omitempty"`
}

// SuppressionWindow is a time range during which a node's polling
// (unmanage) or alerting (mute) is disabled.
type SuppressionWindow struct {
	From  time.Time `json:"from"`
	Until time.Time `json:"until"`
}

// Equal reports whether both window bounds match the other window exactly,
// to the instant. There is no tolerance or overlap semantics.
func (w SuppressionWindow) Equal(other SuppressionWindow) bool {
	return w.From.Equal(other.From) && w.Until.Equal(other.Until)
}
