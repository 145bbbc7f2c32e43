// Package shade runs the PowerView protocol engine for individual shades.
//
// Each registered shade owns a Connection (session lifecycle and
// notification routing), a Dispatcher (one command in flight, latest-wins
// queuing, sequence counter) and the latest advertised telemetry. A Manager
// keeps exactly one Shade per BLE address.
//
//	mgr, _ := shade.NewManager(adapterLinks, shade.ManagerOptions{HomeKey: key})
//	s, _ := mgr.Register("AA:BB:CC:DD:EE:FF", shade.Registration{Advertisement: &adv})
//	if err := s.SetPosition(ctx, 50); shade.IsTimeout(err) {
//	    // the shade may still have moved
//	}
//
// Response verification failures are logged only: shades drop the link after
// accepting a command, so a garbled confirmation does not mean the command
// was rejected.
package shade
