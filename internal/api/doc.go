// Package api provides the HTTP REST API for the fleet server.
//
// It exposes two surfaces on the same listener:
//
//	                      ┌──────────────────────────────┐
//	 playback devices ───▶│  POST /api/v1/device-link    │  pair / poll / ack
//	 (poll every 2-3s)    │  (no auth, action-keyed)     │
//	                      ├──────────────────────────────┤
//	 operator dashboard──▶│  /api/v1/devices, /audit     │  JWT bearer auth
//	                      └──────────────┬───────────────┘
//	                                     │
//	                              fleet.Registry
//	                          (in-memory, mutex-guarded)
//
// The device-link endpoint is deliberately a single action-discriminated
// POST so appliances behind restrictive NAT only ever open outbound HTTP.
// Every poll doubles as a heartbeat; the registry derives online/offline
// from heartbeat age when listings are read.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
