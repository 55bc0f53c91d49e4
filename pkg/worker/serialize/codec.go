// Package serialize encodes the frame payloads exchanged over the
// transport layer. It wraps vmihailenco/msgpack/v5, the richest portable
// encoding available in the retrieved corpus that round-trips arbitrary
// Go values including the capability sum type (spec.md §6 "Serialization").
package serialize

import (
	"bytes"

	"github.com/jabolina/go-worker/pkg/worker/types"
	"github.com/vmihailenco/msgpack/v5"
)

// Tag is the first frame of every message exchanged on the wire.
type Tag string

// Wire protocol tags, spec.md §6.
const (
	TagInit        Tag = "INIT"
	TagTask        Tag = "TASK"
	TagVariable    Tag = "VARIABLE"
	TagTaskEnd     Tag = "TASKEND"
	TagRequest     Tag = "REQUEST"
	TagWorkerDown  Tag = "WORKERDOWN"
	TagShutdown    Tag = "SHUTDOWN"
	TagGroup       Tag = "GROUP"
	TagReply       Tag = "REPLY"
	TagBrokerInfo  Tag = "BROKER_INFO"
)

// Marshal encodes v with msgpack.
func Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal decodes data into v with msgpack.
func Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// EncodeKey normalizes an arbitrary decoded value into a deterministic
// GroupKey: the msgpack encoding of a value is a function only of the
// value, so equal values always produce an identical byte string,
// regardless of how the key arrived on the wire (spec.md §6: "equal
// objects serialize byte-identically when used as map keys").
func EncodeKey(v interface{}) (types.GroupKey, error) {
	// Compact ints make an int and an int64 of equal value encode the same;
	// sorted map keys make map-valued keys independent of iteration order.
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return types.GroupKey(buf.Bytes()), nil
}

// GroupTriple is the payload of a GROUP frame: [group_id, sequence, total].
type GroupTriple struct {
	GroupID  string
	Sequence uint64
	Total    interface{}
}
