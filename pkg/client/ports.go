package client

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	return fmt.Sprintf("%s (USB %s:%s %s)", p.Name, p.VID, p.PID, strings.TrimSpace(p.Product))
}

// ListPorts returns serial ports found on the system.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}

	return ports, nil
}

// FindPort picks the only USB serial port, used when no device
// path is given.
func FindPort() (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}

	return selectPort(ports)
}

func selectPort(ports []PortInfo) (string, error) {
	var usb []PortInfo
	for _, p := range ports {
		if p.IsUSB {
			usb = append(usb, p)
		}
	}

	switch len(usb) {
	case 0:
		return "", fmt.Errorf("no USB serial device found")
	case 1:
		return usb[0].Name, nil
	}

	names := make([]string, 0, len(usb))
	for _, p := range usb {
		names = append(names, p.Name)
	}

	return "", fmt.Errorf("several USB serial devices found (%s), specify the port", strings.Join(names, ", "))
}
