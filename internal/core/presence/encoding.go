package presence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-coedit/internal/core/document"
)

// ErrMalformedUpdate 无法解码的 awareness 更新
var ErrMalformedUpdate = errors.New("malformed awareness update")

// entry 线上条目：client clock len(json) json
type entry struct {
	client document.ClientID
	clock  uint64
	state  *State
}

var nullState = []byte("null")

func encodeEntries(entries []entry) []byte {
	var buf bytes.Buffer
	buf.Write(varint.ToUvarint(uint64(len(entries))))
	for _, e := range entries {
		raw := nullState
		if e.state != nil {
			// State 只包含可编码字段，Marshal 不会失败
			raw, _ = json.Marshal(e.state)
		}
		buf.Write(varint.ToUvarint(uint64(e.client)))
		buf.Write(varint.ToUvarint(e.clock))
		buf.Write(varint.ToUvarint(uint64(len(raw))))
		buf.Write(raw)
	}
	return buf.Bytes()
}

func decodeEntries(data []byte) ([]entry, error) {
	r := bytes.NewReader(data)
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: %d entries in %d bytes", ErrMalformedUpdate, n, r.Len())
	}

	entries := make([]entry, 0, n)
	for i := uint64(0); i < n; i++ {
		client, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		clk, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		size, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		if size > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: state of %d bytes truncated", ErrMalformedUpdate, size)
		}
		raw := make([]byte, size)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
		}

		var st *State
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
		}
		entries = append(entries, entry{client: document.ClientID(client), clock: clk, state: st})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedUpdate, r.Len())
	}
	return entries, nil
}

func readUvarint(r io.ByteReader) (uint64, error) {
	v, err := varint.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	return v, nil
}
