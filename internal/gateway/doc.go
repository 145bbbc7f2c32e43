// Package gateway extracts the PowerView home key from a Gen 3 gateway.
//
// Shades paired to a PowerView home only accept commands encrypted with the
// home's 16-byte key. The key never leaves the shades, but a Gen 3 gateway
// can relay a GetShadeKey request (service 251, command 18) to any shade it
// manages and return the shade's reply.
//
// # Gateway API
//
//   - GET /home/shades lists shades; names are base64 encoded and bleName is
//     the name the shade advertises over Bluetooth
//   - POST /home/shades/exec?shades=<bleName> with {"hex": "<frame>"} relays a
//     frame and returns {"err": 0, "responses": [{"hex": "<frame>"}]}
//
// Relayed frames are sid, cid, seq, len followed by data. In a response the
// first data byte is an error code.
//
// # Retries
//
// Network errors and 5xx responses are retried with exponential backoff.
// 4xx responses, malformed bodies and protocol failures are not.
//
// # Usage Example
//
//	client := gateway.NewClientWithURL(gateway.DefaultURL)
//	keys, err := client.ExtractKeys(ctx)
//	if err != nil {
//	    log.Fatal(gateway.GetShortErrorMessage(err))
//	}
//	home, err := gateway.HomeKey(keys)
package gateway
