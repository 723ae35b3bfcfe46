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
	"errors"
	"fmt"

	"github.com/carverauto/orionsync/pkg/models"
)

var (
	// ErrInvalidState is returned when the requested lifecycle state is not
	// one of present, absent, remanaged, unmanaged, muted, unmuted.
	ErrInvalidState = errors.New("invalid lifecycle state")

	// ErrNoIdentifier is returned when none of node_id, ip_address, or
	// node_name is provided.
	ErrNoIdentifier = errors.New("one of node_id, ip_address, or node_name must be provided")

	// ErrValidation wraps all device profile construction failures.
	ErrValidation = errors.New("validation failed")

	// ErrNodeNotFound is returned by operations that require the target
	// node to exist in the Orion inventory.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNotUnmanaged is returned when remanage is requested for a node
	// that is not currently unmanaged.
	ErrNotUnmanaged = errors.New("node is not currently unmanaged")

	// ErrDiscoverySubmit covers failures while building or submitting the
	// discovery job, before Orion accepts it.
	ErrDiscoverySubmit = errors.New("failed to start node discovery")

	// ErrDiscoveryTimeout is returned when the discovery job does not
	// terminate within the polling ceiling.
	ErrDiscoveryTimeout = errors.New("timeout while waiting for discovery job to terminate")

	// ErrDiscoveryFailed is returned when the discovery log reports a
	// failing terminal result code.
	ErrDiscoveryFailed = errors.New("node discovery did not complete successfully")

	// ErrDiscoveryResolution is returned when the discovered node cannot be
	// resolved to exactly one inventory record.
	ErrDiscoveryResolution = errors.New("discovered node not resolved in inventory")

	// ErrReconciliation covers post-discovery correction failures.
	ErrReconciliation = errors.New("post-discovery reconciliation failed")

	// ErrSafetyLimit is returned when volume filters match more volumes
	// than the deletion cap allows. Nothing is deleted in that case.
	ErrSafetyLimit = errors.New("too many volumes matched for removal")
)

// DiscoveryError is a discovery-phase failure carrying the best-available
// diagnostic context: the partially built device profile and, when the job
// reached a terminal state, the raw discovery outcome.
type DiscoveryError struct {
	Err     error
	Profile *models.DeviceProfile
	Outcome *models.DiscoveryOutcome
}

func (e *DiscoveryError) Error() string {
	if e.Outcome != nil {
		return fmt.Sprintf("%v (result %s: %s %s)",
			e.Err, e.Outcome.Result, e.Outcome.ResultDescription, e.Outcome.ErrorMessage)
	}

	return e.Err.Error()
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
