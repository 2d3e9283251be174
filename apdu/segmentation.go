package apdu

// Segmentation describes what a device supports, the
// Segmentation_Supported property's value set.
type Segmentation uint8

const (
	SegmentationBoth Segmentation = iota
	SegmentationTransmit
	SegmentationReceive
	SegmentationNone
)

// segmentCounts and apduLengths are the standard's lookup tables for
// the joint segments/max-APDU-length octet (clause 20.1.2.4/20.1.2.5).
var segmentCounts = [8]int{0, 2, 4, 8, 16, 32, 64, 65}   // index 7 means ">64"
var apduLengths = [...]int{50, 128, 206, 480, 1024, 1476} // indices 6..15 reserved/=1476

// EncodeSegmentsAndLength packs the negotiated max-segments count and
// max-APDU-length into the single octet used by I-Am and confirmed
// request headers. maxSegments is rounded down to the nearest
// supported bucket; maxAPDULength likewise.
func EncodeSegmentsAndLength(maxSegments, maxAPDULength int) byte {
	segBits := 0
	for i, v := range segmentCounts {
		if maxSegments >= v {
			segBits = i
		}
	}
	lenBits := 0
	for i, v := range apduLengths {
		if maxAPDULength >= v {
			lenBits = i
		}
	}
	if lenBits > 5 {
		lenBits = 5
	}
	return byte(segBits<<4) | byte(lenBits)
}

// DecodeSegmentsAndLength unpacks the joint octet into the maximum
// segment count (0 means unsegmented, 65 means "more than 64
// supported") and the maximum APDU length in bytes.
func DecodeSegmentsAndLength(b byte) (maxSegments, maxAPDULength int) {
	segBits := (b >> 4) & 0x07
	lenBits := b & 0x0F
	maxSegments = segmentCounts[segBits]
	if int(lenBits) < len(apduLengths) {
		maxAPDULength = apduLengths[lenBits]
	} else {
		maxAPDULength = apduLengths[len(apduLengths)-1]
	}
	return maxSegments, maxAPDULength
}
