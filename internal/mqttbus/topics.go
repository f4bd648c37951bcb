package mqttbus

const (
	suffixConnectionRequest  = "/connection_request"
	suffixConnectionResponse = "/connection_response"
	suffixConfigRequest      = "/config_request"
	suffixConfigResponse     = "/config_response"
	suffixConfigDevice       = "/config_device"
	suffixMonitor            = "/monitor"
	suffixOneWire            = "/one_wire"
	suffixChildrenListener   = "/children_listener"
)

// Inbound and outbound liveness payloads, matched verbatim.
const (
	MsgConnect      = "Connect"
	MsgPresent      = "Present"
	MsgDisconnect   = "Disconnect"
	MsgConnected    = "Connected"
	MsgDisconnected = "Disconnected"
)

// Topics builds the topic table for one device identity. Every topic is
// prefixed with the device MAC as twelve uppercase hex characters.
type Topics struct {
	mac string
}

func NewTopics(mac string) Topics { return Topics{mac: mac} }

func (t Topics) MAC() string { return t.mac }

func (t Topics) ConnectionRequest() string  { return t.mac + suffixConnectionRequest }
func (t Topics) ConnectionResponse() string { return t.mac + suffixConnectionResponse }
func (t Topics) ConfigRequest() string      { return t.mac + suffixConfigRequest }
func (t Topics) ConfigResponse() string     { return t.mac + suffixConfigResponse }
func (t Topics) ConfigDevice() string       { return t.mac + suffixConfigDevice }
func (t Topics) Monitor() string            { return t.mac + suffixMonitor }
func (t Topics) OneWire() string            { return t.mac + suffixOneWire }
func (t Topics) ChildrenListener() string   { return t.mac + suffixChildrenListener }

// ChildrenListenerOf is the listener topic of another device, used when
// publishing deltas to a parent.
func (t Topics) ChildrenListenerOf(parentMAC string) string {
	return parentMAC + suffixChildrenListener
}
