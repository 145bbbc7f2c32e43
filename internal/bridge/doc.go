// Package bridge exposes registered shades to the network.
//
// The HTTP API is served with chi:
//
//	GET  /health
//	GET  /events                     WebSocket stream of telemetry events
//	GET  /shades/
//	GET  /shades/{address}/
//	GET  /shades/{address}/info      ?refresh=true re-reads the shade
//	POST /shades/{address}/position  {"position": 0-100, "tilt": 0-100, "velocity": 0-255}
//	POST /shades/{address}/open
//	POST /shades/{address}/close
//	POST /shades/{address}/stop
//	POST /shades/{address}/scene     {"index": 0-255}
//	POST /shades/{address}/identify  {"beeps": n}
//
// When a NATS URL is configured, every telemetry event is also published on
// powerview.shade.<address>.telemetry and commands are accepted on
// powerview.shade.<address>.command with the same JSON body plus an
// "action" field. Requests with a reply subject get a Result back.
package bridge
