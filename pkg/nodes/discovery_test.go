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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/orionsync/pkg/logger"
	"github.com/carverauto/orionsync/pkg/models"
)

// discoveryFake scripts a full successful discovery: no existing node, a
// job that finishes on the second poll with an importable result, and one
// unambiguous discovered-node match.
func discoveryFake() *fakeSWIS {
	fake := profileFake()
	fake.nodeLookups = [][]nodeRow{{}, {managedNodeRow()}}
	fake.statuses = []int{1, 2}
	fake.logRow = &discoveryLogRow{Result: 2, BatchID: "batch-1"}
	fake.discovered = []discoveredNodeRow{{NodeID: 42, Caption: "host1", URI: testNodeURI}}

	return fake
}

func TestAddNodeExistingIsUnchanged(t *testing.T) {
	fake := profileFake()
	fake.nodes = []nodeRow{managedNodeRow()}

	engine := newTestEngine(fake)

	result, err := engine.Apply(context.Background(), snmpAddRequest())
	require.NoError(t, err)

	assert.False(t, result.Changed)
	require.NotNil(t, result.Node)
	assert.Equal(t, 42, result.Node.NodeID)
	assert.Empty(t, fake.invokes)
}

func TestAddNodeDiscoversAndImports(t *testing.T) {
	fake := discoveryFake()
	engine := newTestEngine(fake)

	result, err := engine.Apply(context.Background(), snmpAddRequest())
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, "host1 has been discovered and imported", result.Message)
	require.NotNil(t, result.Node)
	assert.Equal(t, 42, result.Node.NodeID)
	assert.Equal(t, "host1.example.com", result.Node.DNSName)

	// The core plugin carries the target address and resolved credential.
	core := fake.lastInvoke("Orion.Discovery", "CreateCorePluginConfiguration")
	require.NotNil(t, core)

	coreContext, ok := core.args[0].(models.CorePluginContext)
	require.True(t, ok)
	require.Len(t, coreContext.BulkList, 1)
	assert.Equal(t, "10.0.0.5", coreContext.BulkList[0].Address)
	require.Len(t, coreContext.Credentials, 1)
	assert.Equal(t, 7, coreContext.Credentials[0].CredentialID)
	assert.Equal(t, 1, coreContext.Credentials[0].Order)

	// The interfaces plugin starts from the baseline exclusion filters.
	ifaces := fake.lastInvoke("Orion.NPM.Interfaces", "CreateInterfacesPluginConfiguration")
	require.NotNil(t, ifaces)

	ifaceContext, ok := ifaces.args[0].(models.InterfacesPluginContext)
	require.True(t, ok)
	assert.Equal(t, []string{"Up"}, ifaceContext.AutoImportStatus)
	assert.Len(t, ifaceContext.AutoImportExpressionFilter, 4)

	start := fake.lastInvoke("Orion.Discovery", "StartDiscovery")
	require.NotNil(t, start)

	spec, ok := start.args[0].(*models.DiscoveryJobSpec)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(spec.Name, "orionsync.host1.example.com."), "job name %q", spec.Name)
	assert.Equal(t, defaultEngineID, spec.EngineID)
	assert.Equal(t, 300, spec.JobTimeoutSeconds)
	assert.Equal(t, 161, spec.SnmpPort)
	assert.Equal(t, "SNMP2c", spec.PreferredSnmpVersion)
	assert.True(t, spec.IsAutoImport)
	assert.Len(t, spec.PluginConfigurations, 2)

	// Both polls ran; the DNS name was pushed during reconciliation.
	assert.Equal(t, 2, fake.statusCalls)
	require.NotEmpty(t, fake.updates)
	assert.Equal(t, map[string]interface{}{"DNS": "host1.example.com"}, fake.updates[0].fields)
}

// Appended interface filters extend the baseline, never replace it.
func TestAddNodeAppendsCallerInterfaceFilters(t *testing.T) {
	fake := discoveryFake()
	engine := newTestEngine(fake)

	req := snmpAddRequest()
	req.InterfaceFilters = []models.ExpressionFilter{{Prop: "Descr", Op: "!Any", Val: "mgmt"}}

	_, err := engine.Apply(context.Background(), req)
	require.NoError(t, err)

	ifaces := fake.lastInvoke("Orion.NPM.Interfaces", "CreateInterfacesPluginConfiguration")
	require.NotNil(t, ifaces)

	ifaceContext, ok := ifaces.args[0].(models.InterfacesPluginContext)
	require.True(t, ok)
	require.Len(t, ifaceContext.AutoImportExpressionFilter, 5)
	assert.Equal(t, "mgmt", ifaceContext.AutoImportExpressionFilter[4].Val)
}

func TestAddNodeSNMPv3SelectsPreferredVersion(t *testing.T) {
	fake := discoveryFake()
	engine := newTestEngine(fake)

	version := 3

	req := snmpAddRequest()
	req.SNMPVersion = &version

	_, err := engine.Apply(context.Background(), req)
	require.NoError(t, err)

	start := fake.lastInvoke("Orion.Discovery", "StartDiscovery")
	require.NotNil(t, start)

	spec, ok := start.args[0].(*models.DiscoveryJobSpec)
	require.True(t, ok)
	assert.Equal(t, "SNMP3", spec.PreferredSnmpVersion)
}

func TestAddNodeSubmitFailure(t *testing.T) {
	fake := discoveryFake()
	fake.invokeErrs = map[string]error{
		"Orion.Discovery.StartDiscovery": errors.New("engine busy"),
	}
	engine := newTestEngine(fake)

	_, err := engine.Apply(context.Background(), snmpAddRequest())
	require.ErrorIs(t, err, ErrDiscoverySubmit)

	var discErr *DiscoveryError

	require.ErrorAs(t, err, &discErr)
	require.NotNil(t, discErr.Profile)
	assert.Equal(t, "host1", discErr.Profile.Caption)
}

func TestAddNodeCorePluginFailure(t *testing.T) {
	fake := discoveryFake()
	fake.invokeErrs = map[string]error{
		"Orion.Discovery.CreateCorePluginConfiguration": errors.New("bad context"),
	}
	engine := newTestEngine(fake)

	_, err := engine.Apply(context.Background(), snmpAddRequest())
	require.ErrorIs(t, err, ErrDiscoverySubmit)
	assert.Nil(t, fake.lastInvoke("Orion.Discovery", "StartDiscovery"))
}

// A job that never reaches a terminal status exhausts the poll budget.
func TestAddNodeDiscoveryTimeout(t *testing.T) {
	fake := discoveryFake()
	fake.statuses = []int{1}

	engine := newTestEngine(fake)

	_, err := engine.Apply(context.Background(), snmpAddRequest())
	require.ErrorIs(t, err, ErrDiscoveryTimeout)
	assert.Equal(t, discoveryStatusCheckRetries, fake.statusCalls)
}

// A reaped discovery profile (no status rows) counts as finished.
func TestAddNodeReapedProfileIsFinished(t *testing.T) {
	fake := discoveryFake()
	fake.statuses = nil

	engine := newTestEngine(fake)

	result, err := engine.Apply(context.Background(), snmpAddRequest())
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, 1, fake.statusCalls)
}

func TestAddNodeCancelledContext(t *testing.T) {
	fake := discoveryFake()

	// A ticker that never fires forces the poll loop onto the context
	// cancellation branch.
	engine := NewWithClock(fake, &stuckClock{}, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.addNode(ctx, snmpAddRequest())
	require.ErrorIs(t, err, context.Canceled)
}

type stuckClock struct{}

func (*stuckClock) Now() time.Time { return testNow }

func (*stuckClock) Ticker(time.Duration) Ticker {
	return &fakeTicker{ch: make(chan time.Time)}
}

// Result codes 0, 3, 6, and 7 are fatal; everything else proceeds to
// import resolution.
func TestAddNodeResultCodeClassification(t *testing.T) {
	for code := 0; code <= 8; code++ {
		fake := discoveryFake()
		fake.logRow = &discoveryLogRow{Result: code, BatchID: "batch-1"}

		engine := newTestEngine(fake)

		result, err := engine.Apply(context.Background(), snmpAddRequest())

		switch code {
		case 0, 3, 6, 7:
			require.ErrorIs(t, err, ErrDiscoveryFailed, "code %d", code)

			var discErr *DiscoveryError

			require.ErrorAs(t, err, &discErr, "code %d", code)
			require.NotNil(t, discErr.Outcome, "code %d", code)
			assert.Equal(t, models.DiscoveryStatus(code), discErr.Outcome.Result, "code %d", code)
		default:
			require.NoError(t, err, "code %d", code)
			assert.True(t, result.Changed, "code %d", code)
		}
	}
}

func TestAddNodeMissingDiscoveryLog(t *testing.T) {
	fake := discoveryFake()
	fake.logRow = nil

	engine := newTestEngine(fake)

	_, err := engine.Apply(context.Background(), snmpAddRequest())
	require.ErrorIs(t, err, ErrDiscoveryFailed)
	assert.Contains(t, err.Error(), "no discovery log entry")
}

// Zero or several discovered-node matches cannot be attributed to the
// submitted job, so resolution fails rather than guessing.
func TestAddNodeAmbiguousResolution(t *testing.T) {
	fake := discoveryFake()
	fake.discovered = []discoveredNodeRow{
		{NodeID: 42, Caption: "host1", URI: testNodeURI},
		{NodeID: 43, Caption: "host1", URI: "swis://localhost/Orion/Orion.Nodes/NodeID=43"},
	}

	engine := newTestEngine(fake)

	_, err := engine.Apply(context.Background(), snmpAddRequest())
	require.ErrorIs(t, err, ErrDiscoveryResolution)
	assert.Contains(t, err.Error(), "got 2")
}

func TestAddNodeNoResolutionMatch(t *testing.T) {
	fake := discoveryFake()
	fake.discovered = nil

	engine := newTestEngine(fake)

	_, err := engine.Apply(context.Background(), snmpAddRequest())
	require.ErrorIs(t, err, ErrDiscoveryResolution)
}

func TestDiscoveryJobNamesAreUnique(t *testing.T) {
	a := discoveryJobName("host1.example.com", testNow)
	b := discoveryJobName("host1.example.com", testNow)

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "orionsync.host1.example.com.2025-06-01T12:00:00Z."))
}
