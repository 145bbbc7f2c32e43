// Package discovery finds PowerView shades and gateways.
//
// Shades are found from their BLE advertisements. Each PowerView shade
// broadcasts a 9-byte manufacturer data record under company identifier 2073
// carrying its position, motion, battery level and home id. ShadeScanner reads
// advertisements from a link.Scanner and keeps only those records.
//
// Gateways are found with multicast DNS. PowerView Gen 3 gateways advertise
// the "_powerview-g3._tcp" service; GatewayScanner browses for it with
// zeroconf. A gateway is only needed to extract the home key.
//
// # Usage Example
//
//	scanner := discovery.NewShadeScanner(adapter)
//	shades, err := scanner.Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range shades {
//	    fmt.Println(s)
//	}
//
//	gateways, err := discovery.NewGatewayScanner().ScanForGateways(ctx)
//
// # Network Requirements
//
// - Gateway discovery requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package discovery
