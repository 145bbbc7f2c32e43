// Package watch is the live shade dashboard behind `pvctl watch`.
//
// Advertisements from a link.Scanner are routed through a shade.Manager;
// every decoded telemetry record refreshes a row. The selected shade can be
// opened, closed, stopped, stepped by 10% or identified from the keyboard.
package watch
