// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package esasky is a client for the ESASky TAP service of the European Space
// Agency. It lists the missions with maps (observations) and the source
// catalogs, queries them for a cone around a sky position, and downloads the
// map products.
//
// Mission metadata comes from the service registry documents, which are
// fetched anew by every call. Queries are ADQL, sent synchronously to the TAP
// endpoint and returned as tables keyed by the upper-cased mission name:
//
//	client, err := esasky.NewClient(esasky.DefaultConfig())
//	...
//	maps, err := client.QueryRegionMaps(ctx, "M51", "14'", esasky.All())
//	...
//	res, err := client.GetMaps(ctx, maps, esasky.Missions("Herschel"), "")
//	...
//	defer res.Close()
//
// Logging uses the logger in the context (see github.com/stockparfait/logging).
package esasky
