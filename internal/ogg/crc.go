package ogg

// Ogg uses CRC-32 with polynomial 0x04C11DB7, no bit reversal and no final
// XOR, so hash/crc32 (IEEE, reflected) cannot be reused here.

var crcTable = buildCRCTable()

func buildCRCTable() [256]uint32 {
	const poly = uint32(0x04C11DB7)
	var table [256]uint32
	for i := range table {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

func crcUpdate(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
