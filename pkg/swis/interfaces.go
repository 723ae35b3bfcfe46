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

package swis

import (
	"context"
	"net/http"
)

//go:generate mockgen -destination=mock_swis.go -package=swis github.com/carverauto/orionsync/pkg/swis Client,HTTPClient

// Client is the capability interface against the SolarWinds Information
// Service. All orionsync components talk to Orion exclusively through it.
type Client interface {
	// Query runs a parameterized SWQL query and decodes the results array
	// into out, which must be a pointer to a slice. A nil out discards the
	// rows.
	Query(ctx context.Context, query string, params map[string]interface{}, out interface{}) error

	// Invoke calls a SWIS verb on an entity type. The operation-specific
	// return value is decoded into out when out is non-nil.
	Invoke(ctx context.Context, entity, verb string, args []interface{}, out interface{}) error

	// Update sets properties on the record behind the given swis URI.
	Update(ctx context.Context, uri string, fields map[string]interface{}) error

	// Delete removes the record behind the given swis URI.
	Delete(ctx context.Context, uri string) error

	// Read fetches the record behind the given swis URI into out.
	Read(ctx context.Context, uri string, out interface{}) error
}

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
