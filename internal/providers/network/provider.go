// Package network reports whether the device has a usable network link.
package network

import (
	"net"
)

// Checker reports network connectivity
type Checker interface {
	Available() bool
}

// Provider inspects the host's interfaces
type Provider struct {
	interfaces func() ([]net.Interface, error)
}

// NewProvider creates a network provider backed by the host interfaces
func NewProvider() *Provider {
	return &Provider{interfaces: net.Interfaces}
}

// Available reports true when a non-loopback interface is up
func (p *Provider) Available() bool {
	ifaces, err := p.interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp != 0 {
			return true
		}
	}
	return false
}

// Static is a Checker with a fixed answer
type Static bool

// Available returns the fixed answer
func (s Static) Available() bool {
	return bool(s)
}
