package document

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/multiformats/go-varint"
)

// ClientID 副本标识
type ClientID uint64

// ID item 的全局唯一标识
type ID struct {
	Client ClientID `json:"client"`
	Clock  uint64   `json:"clock"`
}

// String 返回 client:clock 形式
func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Client, id.Clock)
}

func (id ID) less(o ID) bool {
	if id.Client != o.Client {
		return id.Client < o.Client
	}
	return id.Clock < o.Clock
}

func sameID(a, b *ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// StateVector 每个 client 已集成的 item 数量
//
// 用于计算让另一个副本追上本副本所需的最小更新。
type StateVector map[ClientID]uint64

// Encode 编码状态向量
func (sv StateVector) Encode() []byte {
	clients := make([]ClientID, 0, len(sv))
	for c := range sv {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })

	buf := varint.ToUvarint(uint64(len(clients)))
	for _, c := range clients {
		buf = append(buf, varint.ToUvarint(uint64(c))...)
		buf = append(buf, varint.ToUvarint(sv[c])...)
	}
	return buf
}

// DecodeStateVector 解码状态向量
func DecodeStateVector(data []byte) (StateVector, error) {
	r := bytes.NewReader(data)
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	sv := make(StateVector, n)
	for i := uint64(0); i < n; i++ {
		c, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		clock, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		sv[ClientID(c)] = clock
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes in state vector", ErrMalformedUpdate)
	}
	return sv, nil
}
