// Package dschecksum implements the checksum algorithms used by the extent
// codec: the spec-mandated adler-style rolling checksum, plus CRC32C and
// XXH3 as selectable alternatives for callers that want a stronger or
// faster checksum than the default.
//
// Reference: DataSeries include/DataSeries/Extent.hpp (checksum fields in
// the packed extent header) and util/crc32c.h-style Castagnoli tables.
package dschecksum

import "hash/crc32"

// crc32cTable is the Castagnoli polynomial table used for CRC32C.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// crc32cValue computes the CRC32C checksum of data.
func crc32cValue(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}
