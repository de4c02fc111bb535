// ABOUTME: CD+G subcode packet framing
// ABOUTME: Splits a graphics stream into sectors and extracts instructions
package cdg

import "fmt"

const (
	// PacketSize is the size of one subcode packet in bytes
	PacketSize = 24

	// PacketsPerSector is the number of packets carried by one CD sector
	PacketsPerSector = 4

	// SectorSize is the number of stream bytes consumed per sector
	SectorSize = PacketSize * PacketsPerSector

	// Width and Height of the full CD+G canvas, border included
	Width  = 300
	Height = 216

	symbolMask = 0x3F
	commandCDG = 0x09
)

// Instruction is a single CD+G graphics instruction with its 16 data symbols.
// Symbols are masked to their 6 significant bits.
type Instruction struct {
	Code byte
	Data [16]byte
}

// DecodeError reports a graphics stream that cannot be decoded
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid CD+G stream at byte %d: %s", e.Offset, e.Reason)
}

// parsePacket returns the instruction carried by a packet, if it is a CD+G packet.
// Packet layout: command, instruction, 2 parity Q, 16 data, 4 parity P.
func parsePacket(p []byte) (Instruction, bool) {
	if p[0]&symbolMask != commandCDG {
		return Instruction{}, false
	}

	inst := Instruction{Code: p[1] & symbolMask}
	for i := range inst.Data {
		inst.Data[i] = p[4+i] & symbolMask
	}
	return inst, true
}

// validate checks the stream framing and returns the number of sectors
func validate(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, &DecodeError{Offset: 0, Reason: "empty stream"}
	}

	if rem := len(data) % PacketSize; rem != 0 {
		return 0, &DecodeError{
			Offset: len(data) - rem,
			Reason: fmt.Sprintf("truncated packet (%d trailing bytes)", rem),
		}
	}

	found := false
	for off := 0; off < len(data); off += PacketSize {
		if data[off]&symbolMask == commandCDG {
			found = true
			break
		}
	}
	if !found {
		return 0, &DecodeError{Offset: 0, Reason: "no CD+G packets"}
	}

	return (len(data) + SectorSize - 1) / SectorSize, nil
}
