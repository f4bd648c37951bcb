package mqttbus

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
)

// ResolveMAC determines the device identity used as topic prefix. A
// configured override wins, otherwise the hardware address of the first
// non-loopback interface is used.
func ResolveMAC(override string) (string, error) {
	if override != "" {
		return FormatMAC(override)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list network interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) != 6 {
			continue
		}
		return strings.ToUpper(hex.EncodeToString(iface.HardwareAddr)), nil
	}
	return "", fmt.Errorf("no network interface with a hardware address found")
}

// FormatMAC normalizes a MAC notation ("aa:bb:cc:dd:ee:ff", with dashes
// or bare) into the twelve uppercase hex characters the topic table uses.
func FormatMAC(raw string) (string, error) {
	cleaned := strings.NewReplacer(":", "", "-", "", ".", "").Replace(raw)
	cleaned = strings.ToUpper(strings.TrimSpace(cleaned))
	if len(cleaned) != 12 {
		return "", fmt.Errorf("invalid MAC %q: want 12 hex characters, got %d", raw, len(cleaned))
	}
	if _, err := hex.DecodeString(cleaned); err != nil {
		return "", fmt.Errorf("invalid MAC %q: %w", raw, err)
	}
	return cleaned, nil
}
