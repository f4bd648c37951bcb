package ble

// GATT identity of the configuration service. The TCP emulation speaks
// the same characteristic set so the app protocol stays identical.
const (
	ServiceUUID     uint16 = 0x1234
	CharReadConfig  uint16 = 0xFFF1
	CharWriteConfig uint16 = 0xFFF2
	CharReadMonitor uint16 = 0xFFF3
	CharReadOneWire uint16 = 0xFFF4
)

// headerOverhead is what ATT claims of every notification/read response.
const headerOverhead = 3

// Chunk splits a payload into MTU-3 sized frames and appends the empty
// frame that terminates a multi-read transfer.
func Chunk(payload []byte, mtu int) [][]byte {
	size := mtu - headerOverhead
	if size < 1 {
		size = 1
	}
	frames := make([][]byte, 0, len(payload)/size+2)
	for start := 0; start < len(payload); start += size {
		end := start + size
		if end > len(payload) {
			end = len(payload)
		}
		frames = append(frames, payload[start:end])
	}
	return append(frames, []byte{})
}

// Reassemble joins frames until the empty terminator.
func Reassemble(frames [][]byte) []byte {
	var out []byte
	for _, frame := range frames {
		if len(frame) == 0 {
			break
		}
		out = append(out, frame...)
	}
	return out
}

// DeviceName derives the advertised name from the first three bytes of
// the device MAC, "AABBCCDDEEFF" becomes "ESP_AABBCC".
func DeviceName(mac string) string {
	prefix := mac
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return "ESP_" + prefix
}
