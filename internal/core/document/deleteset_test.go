package document

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/pkg/types"
)

// deleteOnlyUpdate 构造只含删除集的更新
func deleteOnlyUpdate(client ClientID, spans ...clockRange) []byte {
	var buf bytes.Buffer
	putUvarint(&buf, 0)
	putUvarint(&buf, 1)
	putUvarint(&buf, uint64(client))
	putUvarint(&buf, uint64(len(spans)))
	for _, r := range spans {
		putUvarint(&buf, r.start)
		putUvarint(&buf, r.end-r.start)
	}
	return buf.Bytes()
}

func TestDeleteSpans_Merge(t *testing.T) {
	s := make(deleteSpans)
	s.add([]deleteSpan{
		{client: 1, start: 10, length: 5},
		{client: 1, start: 0, length: 3},
		{client: 1, start: 3, length: 2},
		{client: 1, start: 12, length: 10},
		{client: 2, start: 4, length: 0},
	})

	assert.Equal(t, []clockRange{{0, 5}, {10, 22}}, s[1])
	assert.NotContains(t, s, ClientID(2))
	assert.Equal(t, 2, s.count())
	assert.Equal(t, 3, s.countWith([]deleteSpan{{client: 1, start: 30, length: 1}}))
	assert.Equal(t, 2, s.count(), "countWith 不修改原集合")
}

func TestDoc_HugeDeleteRangeStaysCompact(t *testing.T) {
	d := New(WithClientID(1))

	update := deleteOnlyUpdate(7, clockRange{start: 0, end: 1 << 40})
	require.NoError(t, d.ApplyUpdate(update, types.OriginRemote))
	_, deletes := d.Pending()
	assert.Equal(t, 1, deletes)

	// 重复应用不增长
	require.NoError(t, d.ApplyUpdate(update, types.OriginRemote))
	_, deletes = d.Pending()
	assert.Equal(t, 1, deletes)
}

func TestDoc_PendingDeleteResolvesWhenItemsArrive(t *testing.T) {
	src := New(WithClientID(7))
	require.NoError(t, src.Text().Insert(0, "abc"))
	full, err := src.EncodeStateAsUpdate(nil)
	require.NoError(t, err)

	dst := New(WithClientID(1))
	require.NoError(t, dst.ApplyUpdate(deleteOnlyUpdate(7, clockRange{start: 1, end: 1 << 40}), types.OriginRemote))
	require.NoError(t, dst.ApplyUpdate(full, types.OriginRemote))

	assert.Equal(t, "a", dst.Text().String())
	_, deletes := dst.Pending()
	assert.Equal(t, 1, deletes, "未到达的部分继续暂存")
	assert.Equal(t, []clockRange{{3, 1 << 40}}, dst.pendingDeletes[7])
}

func TestDoc_TooManyPendingDeleteSpans(t *testing.T) {
	d := New(WithClientID(1))

	spans := make([]clockRange, maxPendingDeleteSpans+1)
	for i := range spans {
		start := uint64(i) * 2
		spans[i] = clockRange{start: start, end: start + 1}
	}
	err := d.ApplyUpdate(deleteOnlyUpdate(7, spans...), types.OriginRemote)
	assert.ErrorIs(t, err, ErrMalformedUpdate)

	_, deletes := d.Pending()
	assert.Zero(t, deletes, "被拒绝的更新不留下任何暂存")
}

func TestDecodeUpdate_DeleteRangeOutOfBounds(t *testing.T) {
	var buf bytes.Buffer
	putUvarint(&buf, 0)
	putUvarint(&buf, 1)
	putUvarint(&buf, 7)
	putUvarint(&buf, 1)
	putUvarint(&buf, ^uint64(0))
	putUvarint(&buf, 2)

	_, _, err := decodeUpdate(buf.Bytes())
	assert.ErrorIs(t, err, ErrMalformedUpdate)
}
