package live

// MessageType represents the type of live protocol frame
type MessageType uint8

const (
	// Frame types
	FrameGraph   MessageType = 0x00 // server -> client: full working-set snapshot
	FrameTick    MessageType = 0x01 // server -> client: per-tick positions
	FrameCommand MessageType = 0x02 // client -> server: interaction command
	FrameControl MessageType = 0x03 // both directions: HELLO / PING / PONG
)

// CommandType represents client-side interaction commands
type CommandType uint8

const (
	CommandPin        CommandType = 0x01
	CommandUnpin      CommandType = 0x02
	CommandUnpinAll   CommandType = 0x03
	CommandDragStart  CommandType = 0x04
	CommandDragMove   CommandType = 0x05
	CommandDragEnd    CommandType = 0x06
	CommandViewport   CommandType = 0x07
	CommandSetPhysics CommandType = 0x08
	CommandExpand     CommandType = 0x09
	CommandHover      CommandType = 0x0A
)

// Command is a decoded client interaction command. Fields are populated
// per type: NodeID for node-addressed commands, X/Y for coordinates,
// Scale for viewport updates, On for physics toggling.
type Command struct {
	Type   CommandType
	NodeID string
	X      float64
	Y      float64
	Scale  float64
	On     bool
}
