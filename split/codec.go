package split

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	splitHeaderSize = 6 // issue_id_len(2) + num_entries(4), issue id follows the length
	entryFixedSize  = 6 // username_len(2) + thousandths(4), username follows the length
)

// MarshalFinalSplit encodes a FinalSplit into its canonical binary form.
// The encoding is what receipts sign, so it must stay stable.
func MarshalFinalSplit(f *FinalSplit) ([]byte, error) {
	if len(f.Entries) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d entries", ErrTooManyEntries, len(f.Entries))
	}
	if len(f.IssueID) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: issue id too long", ErrInvalidSplitData)
	}

	size := splitHeaderSize + len(f.IssueID)
	for _, e := range f.Entries {
		if len(e.Username) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: username too long", ErrInvalidSplitData)
		}
		size += entryFixedSize + len(e.Username)
	}

	buf := make([]byte, size)
	offset := 0

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(f.IssueID)))
	offset += 2
	offset += copy(buf[offset:], f.IssueID)

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(f.Entries)))
	offset += 4

	for _, e := range f.Entries {
		binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(e.Username)))
		offset += 2
		offset += copy(buf[offset:], e.Username)
		binary.BigEndian.PutUint32(buf[offset:offset+4], e.Thousandths)
		offset += 4
	}
	return buf, nil
}

// UnmarshalFinalSplit decodes binary data produced by MarshalFinalSplit.
func UnmarshalFinalSplit(data []byte) (*FinalSplit, error) {
	if len(data) < splitHeaderSize {
		return nil, fmt.Errorf("%w: too short (%d bytes)", ErrInvalidSplitData, len(data))
	}
	offset := 0

	idLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if len(data) < offset+idLen+4 {
		return nil, fmt.Errorf("%w: truncated issue id", ErrInvalidSplitData)
	}
	f := &FinalSplit{IssueID: string(data[offset : offset+idLen])}
	offset += idLen

	numEntries := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4

	// Every entry needs at least entryFixedSize bytes.
	if numEntries > (len(data)-offset)/entryFixedSize {
		return nil, fmt.Errorf("%w: %d entries do not fit in %d bytes",
			ErrInvalidSplitData, numEntries, len(data)-offset)
	}

	f.Entries = make([]FinalShare, numEntries)
	for i := 0; i < numEntries; i++ {
		if len(data) < offset+2 {
			return nil, fmt.Errorf("%w: entry %d truncated", ErrInvalidSplitData, i)
		}
		nameLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if len(data) < offset+nameLen+4 {
			return nil, fmt.Errorf("%w: entry %d truncated", ErrInvalidSplitData, i)
		}
		f.Entries[i].Username = string(data[offset : offset+nameLen])
		offset += nameLen
		f.Entries[i].Thousandths = binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
	}

	if offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidSplitData, len(data)-offset)
	}
	return f, nil
}
