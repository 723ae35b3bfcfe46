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
	"strings"
	"time"

	"github.com/carverauto/orionsync/pkg/logger"
	"github.com/carverauto/orionsync/pkg/swis"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClock pins Now and returns tickers that fire immediately, so the
// discovery poll loop runs without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (*fakeClock) Ticker(time.Duration) Ticker {
	ch := make(chan time.Time)
	close(ch)

	return &fakeTicker{ch: ch}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }
func (*fakeTicker) Stop()                    {}

func newTestEngine(client swis.Client) *Engine {
	return NewWithClock(client, &fakeClock{now: testNow}, logger.NewTestLogger())
}

// marshalInto decodes v into out through JSON, the same way the real SWIS
// client decodes response bodies.
func marshalInto(out interface{}, v interface{}) error {
	if out == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, out)
}

// queryContains matches a query argument by substring.
type queryContains string

func (m queryContains) Matches(x interface{}) bool {
	s, ok := x.(string)
	return ok && strings.Contains(s, string(m))
}

func (m queryContains) String() string {
	return fmt.Sprintf("query contains %q", string(m))
}

type invokeCall struct {
	entity string
	verb   string
	args   []interface{}
}

type updateCall struct {
	uri    string
	fields map[string]interface{}
}

// fakeSWIS is a scripted in-memory stand-in for the Orion API, routing
// queries by the entity they select from. Recorded invokes, updates, and
// deletes let tests assert exactly what was sent.
type fakeSWIS struct {
	// Inventory and lookup fixtures.
	nodes       []nodeRow
	nodeLookups [][]nodeRow // successive node query results; last repeats
	credentials map[string]int
	engines     map[string]int

	// Discovery fixtures.
	statuses   []int // successive status poll results; last repeats
	logRow     *discoveryLogRow
	discovered []discoveredNodeRow
	logItems   []discoveryLogItemRow
	volumeURIs map[string]string

	// Suppression fixtures.
	suppression *suppressionStateRow

	// Injected failures, keyed "<entity>.<verb>" for invokes and by URI
	// for updates.
	invokeErrs map[string]error
	updateErrs map[string]error
	deleteErr  error

	// Recorded traffic.
	invokes     []invokeCall
	updates     []updateCall
	deletes     []string
	nodeCalls   int
	statusCalls int
}

var _ swis.Client = (*fakeSWIS)(nil)

func (f *fakeSWIS) Query(_ context.Context, query string, params map[string]interface{}, out interface{}) error {
	switch {
	case strings.Contains(query, "Orion.DiscoveredNodes"):
		return marshalInto(out, f.discovered)

	case strings.Contains(query, "FROM Orion.Nodes"):
		if len(f.nodeLookups) > 0 {
			idx := f.nodeCalls
			f.nodeCalls++

			if idx >= len(f.nodeLookups) {
				idx = len(f.nodeLookups) - 1
			}

			return marshalInto(out, f.nodeLookups[idx])
		}

		return marshalInto(out, f.nodes)

	case strings.Contains(query, "FROM Orion.Credential"):
		name, _ := params["credential_name"].(string)
		if id, ok := f.credentials[name]; ok {
			return marshalInto(out, []credentialRow{{ID: id}})
		}

		return marshalInto(out, []credentialRow{})

	case strings.Contains(query, "FROM Orion.Engines"):
		name, _ := params["engine_name"].(string)
		if id, ok := f.engines[name]; ok {
			return marshalInto(out, []engineRow{{EngineID: id, ServerName: name}})
		}

		return marshalInto(out, []engineRow{})

	case strings.Contains(query, "FROM Orion.DiscoveryProfiles"):
		idx := f.statusCalls
		f.statusCalls++

		if len(f.statuses) == 0 {
			return marshalInto(out, []discoveryStatusRow{})
		}

		if idx >= len(f.statuses) {
			idx = len(f.statuses) - 1
		}

		return marshalInto(out, []discoveryStatusRow{{Status: f.statuses[idx]}})

	case strings.Contains(query, "FROM Orion.DiscoveryLogItems"):
		return marshalInto(out, f.logItems)

	case strings.Contains(query, "FROM Orion.DiscoveryLogs"):
		if f.logRow == nil {
			return marshalInto(out, []discoveryLogRow{})
		}

		return marshalInto(out, []discoveryLogRow{*f.logRow})

	case strings.Contains(query, "FROM Orion.Volumes"):
		id, _ := params["net_object_id"].(string)
		if uri, ok := f.volumeURIs[id]; ok {
			return marshalInto(out, []volumeURIRow{{URI: uri}})
		}

		return marshalInto(out, []volumeURIRow{})

	default:
		return fmt.Errorf("unexpected query: %s", query) //nolint:err113 // test helper
	}
}

func (f *fakeSWIS) Invoke(_ context.Context, entity, verb string, args []interface{}, out interface{}) error {
	f.invokes = append(f.invokes, invokeCall{entity: entity, verb: verb, args: args})

	key := entity + "." + verb

	if err, ok := f.invokeErrs[key]; ok {
		return err
	}

	switch key {
	case "Orion.Discovery.CreateCorePluginConfiguration":
		return marshalInto(out, map[string]interface{}{"PluginType": "core"})
	case "Orion.NPM.Interfaces.CreateInterfacesPluginConfiguration":
		return marshalInto(out, map[string]interface{}{"PluginType": "interfaces"})
	case "Orion.Discovery.StartDiscovery":
		return marshalInto(out, 117)
	case "Orion.AlertSuppression.GetAlertSuppressionState":
		if f.suppression == nil {
			return marshalInto(out, []suppressionStateRow{})
		}

		return marshalInto(out, []suppressionStateRow{*f.suppression})
	default:
		return nil
	}
}

func (f *fakeSWIS) Update(_ context.Context, uri string, fields map[string]interface{}) error {
	if err, ok := f.updateErrs[uri]; ok {
		return err
	}

	f.updates = append(f.updates, updateCall{uri: uri, fields: fields})

	return nil
}

func (f *fakeSWIS) Delete(_ context.Context, uri string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}

	f.deletes = append(f.deletes, uri)

	return nil
}

func (f *fakeSWIS) Read(_ context.Context, _ string, _ interface{}) error {
	return nil
}

// lastInvoke returns the most recent invoke matching entity and verb, or
// nil when there is none.
func (f *fakeSWIS) lastInvoke(entity, verb string) *invokeCall {
	for i := len(f.invokes) - 1; i >= 0; i-- {
		if f.invokes[i].entity == entity && f.invokes[i].verb == verb {
			return &f.invokes[i]
		}
	}

	return nil
}

const testNodeURI = "swis://localhost/Orion/Orion.Nodes/NodeID=42"

// managedNodeRow is a typical managed host1 inventory record. The
// unmanage bounds carry Orion's epoch defaults.
func managedNodeRow() nodeRow {
	return nodeRow{
		NodeID:        42,
		Caption:       "host1",
		DNS:           "host1.example.com",
		IPAddress:     "10.0.0.5",
		Unmanaged:     false,
		UnManageFrom:  "1899-12-30T00:00:00Z",
		UnManageUntil: "1899-12-30T00:00:00Z",
		URI:           testNodeURI,
	}
}

func unmanagedNodeRow(from, until time.Time) nodeRow {
	row := managedNodeRow()
	row.Unmanaged = true
	row.UnManageFrom = from.UTC().Format(time.RFC3339)
	row.UnManageUntil = until.UTC().Format(time.RFC3339)

	return row
}
