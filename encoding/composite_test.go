package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenridge/bacstack/tag"
)

func TestDateTimeRoundTrip(t *testing.T) {
	dt := DateTime{
		Date: tag.Date{Year: 2024, Month: 3, Day: 14, Weekday: 4},
		Time: tag.Time{Hour: 8, Minute: 30, Second: 0, Hundredths: 0},
	}
	buf := make([]byte, EncodeDateTime(nil, dt))
	n := EncodeDateTime(buf, dt)
	require.Equal(t, len(buf), n)

	got, consumed, err := DecodeDateTime(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, dt, got)
}

func TestPropertyReferenceWithAndWithoutIndex(t *testing.T) {
	r := PropertyReference{PropertyID: 85}
	buf := make([]byte, EncodePropertyReference(nil, r))
	EncodePropertyReference(buf, r)
	got, n, err := DecodePropertyReference(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, r, got)

	r2 := PropertyReference{PropertyID: 87, HasIndex: true, Index: 3}
	buf2 := make([]byte, EncodePropertyReference(nil, r2))
	EncodePropertyReference(buf2, r2)
	got2, n2, err := DecodePropertyReference(buf2)
	require.NoError(t, err)
	assert.Equal(t, len(buf2), n2)
	assert.Equal(t, r2, got2)
}

func TestReadAccessSpecificationRoundTrip(t *testing.T) {
	spec := ReadAccessSpecification{
		Object: tag.ObjectID{Type: 8, Instance: 123},
		References: []PropertyReference{
			{PropertyID: 76},
			{PropertyID: 87, HasIndex: true, Index: 1},
		},
	}
	buf := make([]byte, EncodeReadAccessSpecification(nil, spec))
	EncodeReadAccessSpecification(buf, spec)
	got, n, err := DecodeReadAccessSpecification(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, spec, got)
}

func TestArrayReadWriteIndexRules(t *testing.T) {
	a := Array{Elements: []tag.Value{tag.Real(1), tag.Real(2), tag.Real(3)}}

	count, err := a.ReadIndex(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count[0].Uint)

	all, err := a.ReadIndex(ArrayAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := a.ReadIndex(2)
	require.NoError(t, err)
	assert.Equal(t, float32(2), one[0].Real)

	_, err = a.ReadIndex(4)
	assert.ErrorIs(t, err, tag.ErrInvalidArrayIndex)

	require.NoError(t, a.WriteIndex(2, []tag.Value{tag.Real(99)}))
	assert.Equal(t, float32(99), a.Elements[1].Real)

	err = a.WriteIndex(0, []tag.Value{tag.Real(1)})
	assert.ErrorIs(t, err, tag.ErrInvalidArrayIndex)
}

func TestDailyScheduleRoundTrip(t *testing.T) {
	d := DailySchedule{
		{Time: tag.Time{Hour: 8, Minute: 0, Second: 0, Hundredths: 0}, Value: tag.Real(20.0)},
		{Time: tag.Time{Hour: 18, Minute: 0, Second: 0, Hundredths: 0}, Value: tag.Real(16.0)},
	}
	buf := make([]byte, EncodeDailySchedule(nil, d))
	n := EncodeDailySchedule(buf, d)
	require.Equal(t, len(buf), n)

	got, consumed, err := DecodeDailySchedule(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, d, got)
}

func TestListRoundTrip(t *testing.T) {
	values := []tag.Value{tag.Unsigned(1), tag.Real(2.5), tag.CharacterString("x")}
	buf := make([]byte, EncodeList(nil, values))
	EncodeList(buf, values)
	got, err := DecodeList(buf)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}
