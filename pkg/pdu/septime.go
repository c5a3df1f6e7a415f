package pdu

// separationCodeToMicros maps a 4-bit separation-time code to microseconds,
// per the ISO-TP-adjacent encoding CANyonero uses on the wire.
var separationCodeToMicros = [16]uint32{
	0x0: 0,
	0x1: 1000,
	0x2: 2000,
	0x3: 3000,
	0x4: 4000,
	0x5: 5000,
	0x6: 6000,
	0x7: 100,
	0x8: 200,
	0x9: 300,
	0xA: 400,
	0xB: 500,
	0xC: 600,
	0xD: 700,
	0xE: 800,
	0xF: 900,
}

var microsToSeparationCode = func() map[uint32]uint8 {
	m := make(map[uint32]uint8, len(separationCodeToMicros))
	for code, micros := range separationCodeToMicros {
		m[micros] = uint8(code)
	}
	return m
}()

// SeparationTimes is the RX/TX pair carried as a single wire byte: high
// nibble RX code, low nibble TX code.
type SeparationTimes struct {
	RXMicros uint32
	TXMicros uint32
}

// MicrosToCode converts a microsecond separation time to its 4-bit wire
// code. It returns false if micros has no exact representation.
func MicrosToCode(micros uint32) (uint8, bool) {
	code, ok := microsToSeparationCode[micros]
	return code, ok
}

// CodeToMicros converts a 4-bit wire code to microseconds.
func CodeToMicros(code uint8) uint32 {
	return separationCodeToMicros[code&0x0F]
}

// EncodeSeparationByte packs RX/TX separation times into the single wire
// byte used by OpenChannel/OpenFDChannel. It returns false if either value
// has no exact code.
func EncodeSeparationByte(t SeparationTimes) (byte, bool) {
	rx, ok := MicrosToCode(t.RXMicros)
	if !ok {
		return 0, false
	}
	tx, ok := MicrosToCode(t.TXMicros)
	if !ok {
		return 0, false
	}
	return rx<<4 | tx, true
}

// DecodeSeparationByte unpacks the single wire separation-time byte into
// RX/TX microsecond values.
func DecodeSeparationByte(b byte) SeparationTimes {
	return SeparationTimes{
		RXMicros: CodeToMicros(b >> 4),
		TXMicros: CodeToMicros(b & 0x0F),
	}
}
