package exfat

import "time"

// fatEpochYear is the base year of the FAT timestamp's 7-bit year field.
const fatEpochYear = 1980

// guidEpoch is 1582-10-15, the start of the Gregorian calendar and the zero
// point of a version-1 GUID's 100ns-tick timestamp.
var guidEpoch = time.Date(1582, time.October, 15, 0, 0, 0, 0, time.UTC)

// Time wraps time.Time with the FAT/GUID bit-packing this package needs.
// Calendar arithmetic is delegated to the standard library; only the
// domain-specific packing is reimplemented here.
type Time struct {
	time.Time
}

// NewTime wraps a standard time.Time.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// ToFatTimestamp packs the receiver into the 32-bit FAT timestamp: bits 0-4
// seconds/2, 5-10 minute, 11-15 hour, 16-20 day, 21-24 month, 25-31
// year-1980.
func (t Time) ToFatTimestamp() ExfatTimestamp {
	u := t.UTC()

	doubleSeconds := uint32(u.Second() / 2)
	minute := uint32(u.Minute()) << 5
	hour := uint32(u.Hour()) << 11
	day := uint32(u.Day()) << 16
	month := uint32(u.Month()) << 21
	year := uint32(u.Year()-fatEpochYear) << 25

	return ExfatTimestamp(doubleSeconds + minute + hour + day + month + year)
}

// FromFatTimestamp unpacks a 32-bit FAT timestamp plus its 10ms-increment
// and signed 15-minute UTC offset byte into a Time. The packed fields are
// read as UTC (as ToFatTimestamp writes them); the offset sets the zone the
// returned Time is expressed in.
func FromFatTimestamp(packed ExfatTimestamp, tenMsIncrement uint8, utcOffsetUnits int8) Time {
	second := int((packed&0x1F))*2 + int(tenMsIncrement)/100
	nsec := (int(tenMsIncrement) % 100) * 10000000

	minute := int((packed >> 5) & 0x3F)
	hour := int((packed >> 11) & 0x1F)
	day := int((packed >> 16) & 0x1F)
	month := int((packed >> 21) & 0x0F)
	year := int(packed>>25) + fatEpochYear

	t := time.Date(year, time.Month(month), day, hour, minute, second, nsec, time.UTC)
	t = t.In(time.FixedZone("", int(utcOffsetUnits)*15*60))

	return Time{Time: t}
}

// Fat10msIncrement returns the sub-two-second refinement byte:
// 100*(seconds mod 2) + centiseconds.
func (t Time) Fat10msIncrement() uint8 {
	sec := t.Second() % 2 * 100
	centi := t.Nanosecond() / 10000000

	return uint8(sec + centi)
}

// FatUtcOffsetByte returns the signed count of 15-minute units of t's UTC
// offset, as stored in a directory entry's UtcOffset byte.
func (t Time) FatUtcOffsetByte() uint8 {
	_, offsetSeconds := t.Zone()

	return uint8(int8(offsetSeconds / (15 * 60)))
}

// GuidTimestamp returns the 60-bit count of 100ns ticks since the Gregorian
// epoch (1582-10-15), as packed into a version-1 GUID.
func (t Time) GuidTimestamp() uint64 {
	u := t.UTC()
	seconds := uint64(u.Unix() - guidEpoch.Unix())

	return seconds*10000000 + uint64(u.Nanosecond()/100)
}

// FromGuidTimestamp unpacks a GUID's 60-bit timestamp field back into a
// Time.
func FromGuidTimestamp(ticks uint64) Time {
	seconds := int64(ticks / 10000000)
	nsec := int64(ticks%10000000) * 100

	return Time{Time: time.Unix(guidEpoch.Unix()+seconds, nsec).UTC()}
}
