package detect

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/bigbag/k5link/internal/host"
	"github.com/bigbag/k5link/internal/protocol"
	"github.com/bigbag/k5link/internal/serial"
)

// ProbeTimeout bounds the version query sent to each port.
const ProbeTimeout = 300 * time.Millisecond

// Result represents a radio that answered a version query.
type Result struct {
	Port           string
	Version        string
	HasCustomKey   bool
	PasswordLocked bool
}

// Prober answers a version query on one port.
type Prober func(portName string, baudRate int) (*Result, error)

// DetectDevice tries each available port and returns the first radio found.
func DetectDevice(baudRate int) (*Result, error) {
	ports, err := serial.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}
	return firstDevice(ports, baudRate, tryPort)
}

// ListDevices scans all ports and returns every radio that answers.
func ListDevices(baudRate int) ([]Result, error) {
	ports, err := serial.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}
	return allDevices(ports, baudRate, tryPort), nil
}

func firstDevice(ports []string, baudRate int, probe Prober) (*Result, error) {
	if len(ports) == 0 {
		return nil, fmt.Errorf("no serial ports found")
	}

	var lastErr error
	for _, portName := range ports {
		result, err := probe(portName, baudRate)
		if err != nil {
			glog.V(1).Infof("No radio on %s: %v", portName, err)
			lastErr = err
			continue
		}
		return result, nil
	}

	return nil, fmt.Errorf("no radio found (last error: %w)", lastErr)
}

func allDevices(ports []string, baudRate int, probe Prober) []Result {
	var results []Result
	for _, portName := range ports {
		result, err := probe(portName, baudRate)
		if err != nil {
			glog.V(1).Infof("No radio on %s: %v", portName, err)
			continue
		}
		results = append(results, *result)
	}
	return results
}

func tryPort(portName string, baudRate int) (*Result, error) {
	port, err := serial.Open(portName, baudRate)
	if err != nil {
		return nil, err
	}
	defer port.Close()

	return probePort(portName, port)
}

// probePort sends one version query over port.
func probePort(portName string, port host.Port) (*Result, error) {
	c := host.New(port)
	c.SetTimeout(ProbeTimeout)

	v, err := c.Hello()
	if err != nil {
		return nil, err
	}

	return fromVersion(portName, v), nil
}

func fromVersion(portName string, v *protocol.VersionReply) *Result {
	return &Result{
		Port:           portName,
		Version:        v.Version,
		HasCustomKey:   v.HasCustomKey,
		PasswordLocked: v.PasswordLocked,
	}
}
