package main

import (
	"fmt"
	"net"
	"time"
)

// isIPAddress checks if a string is an IP address (IPv4 or IPv6)
func isIPAddress(addr string) bool {
	return net.ParseIP(addr) != nil
}

// endpointLabel returns "IP" or "Host" based on the address type
func endpointLabel(addr string) string {
	if isIPAddress(addr) {
		return "IP"
	}
	return "Host"
}

// formatEndpointInfo formats an endpoint as "name (IP: x.x.x.x)" or
// "name (Host: example.com)"
func formatEndpointInfo(ep Endpoint) string {
	return fmt.Sprintf("%s (%s: %s)", ep.Name, endpointLabel(ep.Address), ep.Address)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%d milliseconds", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1f seconds", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) - minutes*60
		return fmt.Sprintf("%d minutes %d seconds", minutes, seconds)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) - hours*60
		return fmt.Sprintf("%d hours %d minutes", hours, minutes)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) - days*24
	return fmt.Sprintf("%d days %d hours", days, hours)
}
