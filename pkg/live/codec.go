package live

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/synapview/synapview/pkg/graph"
)

// Encoder handles encoding of live protocol frames
type Encoder struct {
	w io.Writer
}

// NewEncoder creates a new encoder
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteUvarint writes an unsigned varint
func (e *Encoder) WriteUvarint(v uint64) error {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, v)
	_, err := e.w.Write(buf[:n])
	return err
}

// WriteString writes a length-prefixed string
func (e *Encoder) WriteString(s string) error {
	if err := e.WriteUvarint(uint64(len(s))); err != nil {
		return err
	}
	_, err := e.w.Write([]byte(s))
	return err
}

// WriteFloat64 writes a little-endian IEEE 754 double
func (e *Encoder) WriteFloat64(v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	_, err := e.w.Write(buf[:])
	return err
}

// WriteBytes writes raw bytes
func (e *Encoder) WriteBytes(b []byte) error {
	_, err := e.w.Write(b)
	return err
}

// Decoder handles decoding of live protocol frames
type Decoder struct {
	r   io.Reader
	buf []byte
}

// NewDecoder creates a new decoder
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, 1024),
	}
}

// ReadUvarint reads an unsigned varint
func (d *Decoder) ReadUvarint() (uint64, error) {
	return binary.ReadUvarint(d)
}

// ReadByte implements io.ByteReader
func (d *Decoder) ReadByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(d.r, b[:])
	return b[0], err
}

// ReadString reads a length-prefixed string
func (d *Decoder) ReadString() (string, error) {
	length, err := d.ReadUvarint()
	if err != nil {
		return "", err
	}

	if length > uint64(len(d.buf)) {
		d.buf = make([]byte, length)
	}

	n, err := io.ReadFull(d.r, d.buf[:length])
	if err != nil {
		return "", err
	}

	return string(d.buf[:n]), nil
}

// ReadFloat64 reads a little-endian IEEE 754 double
func (d *Decoder) ReadFloat64() (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

// EncodeGraph encodes a full working-set snapshot frame.
func EncodeGraph(sg graph.Subgraph) []byte {
	var buf bytes.Buffer
	e := NewEncoder(&buf)

	e.WriteBytes([]byte{byte(FrameGraph)})
	e.WriteUvarint(uint64(len(sg.Nodes)))
	for i := range sg.Nodes {
		n := &sg.Nodes[i]
		e.WriteString(n.ID)
		e.WriteString(n.Label)
		e.WriteString(n.Group)
		e.WriteString(n.Color)
		e.WriteFloat64(n.Size)
		e.WriteFloat64(n.X)
		e.WriteFloat64(n.Y)
		var flags byte
		if n.Placed {
			flags |= 0x01
		}
		if n.Pinned {
			flags |= 0x02
		}
		e.WriteBytes([]byte{flags})
	}
	e.WriteUvarint(uint64(len(sg.Edges)))
	for i := range sg.Edges {
		edge := &sg.Edges[i]
		e.WriteString(edge.Source)
		e.WriteString(edge.Target)
		e.WriteString(edge.Type)
		e.WriteFloat64(edge.Weight)
	}
	return buf.Bytes()
}

// DecodeGraph decodes a snapshot frame.
func DecodeGraph(data []byte) (graph.Subgraph, error) {
	var sg graph.Subgraph
	if len(data) == 0 || data[0] != byte(FrameGraph) {
		return sg, errors.New("not a graph frame")
	}
	d := NewDecoder(bytes.NewReader(data[1:]))

	nodeCount, err := d.ReadUvarint()
	if err != nil {
		return sg, err
	}
	sg.Nodes = make([]graph.Node, 0, nodeCount)
	for i := uint64(0); i < nodeCount; i++ {
		var n graph.Node
		if n.ID, err = d.ReadString(); err != nil {
			return sg, err
		}
		if n.Label, err = d.ReadString(); err != nil {
			return sg, err
		}
		if n.Group, err = d.ReadString(); err != nil {
			return sg, err
		}
		if n.Color, err = d.ReadString(); err != nil {
			return sg, err
		}
		if n.Size, err = d.ReadFloat64(); err != nil {
			return sg, err
		}
		if n.X, err = d.ReadFloat64(); err != nil {
			return sg, err
		}
		if n.Y, err = d.ReadFloat64(); err != nil {
			return sg, err
		}
		flags, err := d.ReadByte()
		if err != nil {
			return sg, err
		}
		n.Placed = flags&0x01 != 0
		n.Pinned = flags&0x02 != 0
		if n.Pinned {
			n.FX, n.FY = n.X, n.Y
		}
		sg.Nodes = append(sg.Nodes, n)
	}

	edgeCount, err := d.ReadUvarint()
	if err != nil {
		return sg, err
	}
	sg.Edges = make([]graph.Edge, 0, edgeCount)
	for i := uint64(0); i < edgeCount; i++ {
		var edge graph.Edge
		if edge.Source, err = d.ReadString(); err != nil {
			return sg, err
		}
		if edge.Target, err = d.ReadString(); err != nil {
			return sg, err
		}
		if edge.Type, err = d.ReadString(); err != nil {
			return sg, err
		}
		if edge.Weight, err = d.ReadFloat64(); err != nil {
			return sg, err
		}
		sg.Edges = append(sg.Edges, edge)
	}
	return sg, nil
}

// TickPosition is one node's position within a tick frame.
type TickPosition struct {
	ID string
	X  float64
	Y  float64
}

// EncodeTick encodes a per-tick position frame. Alpha rides along so
// clients can show settling progress.
func EncodeTick(alpha float64, positions []TickPosition) []byte {
	var buf bytes.Buffer
	e := NewEncoder(&buf)

	e.WriteBytes([]byte{byte(FrameTick)})
	e.WriteFloat64(alpha)
	e.WriteUvarint(uint64(len(positions)))
	for i := range positions {
		e.WriteString(positions[i].ID)
		e.WriteFloat64(positions[i].X)
		e.WriteFloat64(positions[i].Y)
	}
	return buf.Bytes()
}

// DecodeTick decodes a tick frame.
func DecodeTick(data []byte) (alpha float64, positions []TickPosition, err error) {
	if len(data) == 0 || data[0] != byte(FrameTick) {
		return 0, nil, errors.New("not a tick frame")
	}
	d := NewDecoder(bytes.NewReader(data[1:]))

	if alpha, err = d.ReadFloat64(); err != nil {
		return 0, nil, err
	}
	count, err := d.ReadUvarint()
	if err != nil {
		return 0, nil, err
	}
	positions = make([]TickPosition, 0, count)
	for i := uint64(0); i < count; i++ {
		var p TickPosition
		if p.ID, err = d.ReadString(); err != nil {
			return 0, nil, err
		}
		if p.X, err = d.ReadFloat64(); err != nil {
			return 0, nil, err
		}
		if p.Y, err = d.ReadFloat64(); err != nil {
			return 0, nil, err
		}
		positions = append(positions, p)
	}
	return alpha, positions, nil
}

// EncodeCommand encodes a client interaction command.
func EncodeCommand(cmd Command) []byte {
	var buf bytes.Buffer
	e := NewEncoder(&buf)

	e.WriteBytes([]byte{byte(FrameCommand), byte(cmd.Type)})

	switch cmd.Type {
	case CommandPin:
		e.WriteString(cmd.NodeID)
		e.WriteFloat64(cmd.X)
		e.WriteFloat64(cmd.Y)
	case CommandUnpin, CommandDragStart, CommandExpand, CommandHover:
		e.WriteString(cmd.NodeID)
	case CommandDragMove:
		e.WriteFloat64(cmd.X)
		e.WriteFloat64(cmd.Y)
	case CommandViewport:
		e.WriteFloat64(cmd.X)
		e.WriteFloat64(cmd.Y)
		e.WriteFloat64(cmd.Scale)
	case CommandSetPhysics:
		var on byte
		if cmd.On {
			on = 1
		}
		e.WriteBytes([]byte{on})
	case CommandUnpinAll, CommandDragEnd:
		// no payload
	}
	return buf.Bytes()
}

// DecodeCommand decodes a client interaction command.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if len(data) < 2 {
		return cmd, errors.New("command frame too short")
	}
	if data[0] != byte(FrameCommand) {
		return cmd, errors.New("not a command frame")
	}
	cmd.Type = CommandType(data[1])
	d := NewDecoder(bytes.NewReader(data[2:]))

	var err error
	switch cmd.Type {
	case CommandPin:
		if cmd.NodeID, err = d.ReadString(); err != nil {
			return cmd, err
		}
		if cmd.X, err = d.ReadFloat64(); err != nil {
			return cmd, err
		}
		if cmd.Y, err = d.ReadFloat64(); err != nil {
			return cmd, err
		}
	case CommandUnpin, CommandDragStart, CommandExpand, CommandHover:
		if cmd.NodeID, err = d.ReadString(); err != nil {
			return cmd, err
		}
	case CommandDragMove:
		if cmd.X, err = d.ReadFloat64(); err != nil {
			return cmd, err
		}
		if cmd.Y, err = d.ReadFloat64(); err != nil {
			return cmd, err
		}
	case CommandViewport:
		if cmd.X, err = d.ReadFloat64(); err != nil {
			return cmd, err
		}
		if cmd.Y, err = d.ReadFloat64(); err != nil {
			return cmd, err
		}
		if cmd.Scale, err = d.ReadFloat64(); err != nil {
			return cmd, err
		}
	case CommandSetPhysics:
		b, err := d.ReadByte()
		if err != nil {
			return cmd, err
		}
		cmd.On = b != 0
	case CommandUnpinAll, CommandDragEnd:
		// no payload
	default:
		return cmd, fmt.Errorf("unknown command type 0x%02x", byte(cmd.Type))
	}
	return cmd, nil
}
