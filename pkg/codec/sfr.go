package codec

// sfrNames gives the classic PIC14 core's common special function
// register names by bank and file address (the PIC16F8x/PIC16F87x
// memory map), used to turn a decoded file-register operand into a
// symbolic name once the dataflow state has the addressed bank
// pinned down.
var sfrNames = map[uint16]map[uint32]string{
	0: {
		0x00: "INDF", 0x01: "TMR0", 0x02: "PCL", 0x03: "STATUS",
		0x04: "FSR", 0x05: "PORTA", 0x06: "PORTB",
		0x0A: "PCLATH", 0x0B: "INTCON",
	},
	1: {
		0x00: "INDF", 0x01: "OPTION_REG", 0x02: "PCL", 0x03: "STATUS",
		0x04: "FSR", 0x05: "TRISA", 0x06: "TRISB",
		0x0A: "PCLATH", 0x0B: "INTCON",
	},
}

// sfrName looks up a file register's name given the decoder's current
// bank state. ok is false when the bank isn't fully pinned down (so
// the caller falls back to a raw hex address) or the bank/address pair
// names nothing.
func sfrName(bank RegState, file uint32) (string, bool) {
	b, ok := bank.single()
	if !ok {
		return "", false
	}
	names, ok := sfrNames[b]
	if !ok {
		return "", false
	}
	name, ok := names[file]
	return name, ok
}
