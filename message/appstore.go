package message

// AppRequest asks the app store for an app's code.
type AppRequest struct {
	Owner   string `msgpack:"owner"`
	AppName string `msgpack:"app_name"`
}

// EncodingBrotli marks code compressed with brotli.
const EncodingBrotli = "br"

// AppReply is FoundCode when Found is set and NoSuchApp otherwise. Err
// reports a store failure, which is neither.
type AppReply struct {
	Found    bool   `msgpack:"found"`
	Code     []byte `msgpack:"code,omitempty"`
	Encoding string `msgpack:"encoding,omitempty"`
	Version  string `msgpack:"version,omitempty"`
	Err      string `msgpack:"err,omitempty"`
}

// FoundCode builds a reply carrying code.
func FoundCode(code []byte, encoding, version string) AppReply {
	return AppReply{Found: true, Code: code, Encoding: encoding, Version: version}
}

// NoSuchApp builds a reply for an unknown or disabled app.
func NoSuchApp() AppReply {
	return AppReply{}
}
