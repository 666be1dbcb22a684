package message

// AppEventKind names a change the app store pushes to the core.
type AppEventKind string

const (
	AppUpdate AppEventKind = "update"
	AppRename AppEventKind = "rename"
	AppRemove AppEventKind = "remove"
)

// AppEvent tells the core that an app changed. Code is only set for updates,
// NewName only for renames.
type AppEvent struct {
	Kind     AppEventKind `msgpack:"kind"`
	Owner    string       `msgpack:"owner"`
	AppName  string       `msgpack:"app_name"`
	NewName  string       `msgpack:"new_name,omitempty"`
	Code     []byte       `msgpack:"code,omitempty"`
	Encoding string       `msgpack:"encoding,omitempty"`
}

// Ack answers an AppEvent.
type Ack struct {
	OK  bool   `msgpack:"ok"`
	Err string `msgpack:"err,omitempty"`
}

// Identity is the result of the whoami host call.
type Identity struct {
	Owner   string `msgpack:"owner"`
	AppName string `msgpack:"app_name"`
}

// Timestamp is the result of the datetime.now host call, always in UTC.
type Timestamp struct {
	UnixNano int64  `msgpack:"unix_nano"`
	RFC3339  string `msgpack:"rfc3339"`
}
