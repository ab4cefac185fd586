package ws

// Wire-level event names. Inbound events drive the per-connection state
// machine; outbound events are fanned out to device groups.
const (
	// client -> server
	JoinDevice      = "join-device"
	UpdateClipboard = "update-clipboard"
	ClearClipboard  = "clear-clipboard"

	// server -> client
	JoinedDevice       = "joined-device"
	ClipboardUpdated   = "clipboard-updated"
	ClipboardCleared   = "clipboard-cleared"
	DeviceConnected    = "device-connected"
	DeviceDisconnected = "device-disconnected"

	ErrorEvent = "error"
)
