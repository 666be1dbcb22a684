package message

// KVOp selects a KV operation.
type KVOp string

const (
	KVGet       KVOp = "get"
	KVSet       KVOp = "set"
	KVDel       KVOp = "del"
	KVScan      KVOp = "scan"
	KVDelPrefix KVOp = "del_prefix"
	KVSetMany   KVOp = "set_many"
)

// Valid reports whether op is a known operation.
func (op KVOp) Valid() bool {
	switch op {
	case KVGet, KVSet, KVDel, KVScan, KVDelPrefix, KVSetMany:
		return true
	}
	return false
}

// KVPair is one key and its value inside a table.
type KVPair struct {
	Key   string `msgpack:"key"`
	Value []byte `msgpack:"value"`
}

// KVRequest is one KV operation on behalf of an owner.
type KVRequest struct {
	Op     KVOp     `msgpack:"op"`
	Owner  string   `msgpack:"owner"`
	Table  string   `msgpack:"table"`
	Key    string   `msgpack:"key,omitempty"`
	Value  []byte   `msgpack:"value,omitempty"`
	Prefix string   `msgpack:"prefix,omitempty"`
	Pairs  []KVPair `msgpack:"pairs,omitempty"`
}

// KVReply answers a KVRequest. Err is set when the service failed.
type KVReply struct {
	Found bool     `msgpack:"found,omitempty"`
	Value []byte   `msgpack:"value,omitempty"`
	Pairs []KVPair `msgpack:"pairs,omitempty"`
	Count int      `msgpack:"count,omitempty"`
	Err   string   `msgpack:"err,omitempty"`
}

// KVArgs are the arguments a guest passes to a kv host call. The owner is
// never taken from the guest.
type KVArgs struct {
	Table  string   `msgpack:"table"`
	Key    string   `msgpack:"key,omitempty"`
	Value  []byte   `msgpack:"value,omitempty"`
	Prefix string   `msgpack:"prefix,omitempty"`
	Pairs  []KVPair `msgpack:"pairs,omitempty"`
}

// Request binds the arguments to an owner and operation.
func (a KVArgs) Request(op KVOp, owner string) KVRequest {
	return KVRequest{
		Op:     op,
		Owner:  owner,
		Table:  a.Table,
		Key:    a.Key,
		Value:  a.Value,
		Prefix: a.Prefix,
		Pairs:  a.Pairs,
	}
}

// KVValue is the guest-facing result of kv.get.
type KVValue struct {
	Found bool   `msgpack:"found"`
	Value []byte `msgpack:"value,omitempty"`
}

// KVScanResult is the guest-facing result of kv.scan.
type KVScanResult struct {
	Pairs []KVPair `msgpack:"pairs"`
}

// KVCount is the guest-facing result of kv.del_prefix.
type KVCount struct {
	Count int `msgpack:"count"`
}
