package wasmtest

// Memory layout shared by the guests.
const (
	nsAddr       = 0
	opAddr       = 16
	guestOpAddr  = 64
	payloadAddr  = 1024
	responseAddr = 32768
)

type wapcImports struct {
	guestRequest   uint32
	guestResponse  uint32
	guestError     uint32
	hostCall       uint32
	hostResponse   uint32
	hostResponseLn uint32
	hostError      uint32
	hostErrorLen   uint32
}

func importWAPC(b *Builder) wapcImports {
	return wapcImports{
		guestRequest:   b.ImportFunc("wapc", "__guest_request", 2, 0),
		guestResponse:  b.ImportFunc("wapc", "__guest_response", 2, 0),
		guestError:     b.ImportFunc("wapc", "__guest_error", 2, 0),
		hostCall:       b.ImportFunc("wapc", "__host_call", 8, 1),
		hostResponse:   b.ImportFunc("wapc", "__host_response", 1, 0),
		hostResponseLn: b.ImportFunc("wapc", "__host_response_len", 0, 1),
		hostError:      b.ImportFunc("wapc", "__host_error", 1, 0),
		hostErrorLen:   b.ImportFunc("wapc", "__host_error_len", 0, 1),
	}
}

func guest(body func(b *Builder, w wapcImports, c *Code)) []byte {
	b := NewBuilder(1)
	w := importWAPC(b)
	c := &Code{}
	body(b, w, c)
	b.Export("__guest_call", b.Func(2, 1, c.Bytes()))
	return b.Bytes()
}

// readRequest copies the operation name and payload into guest memory.
func readRequest(w wapcImports, c *Code) {
	c.Const(guestOpAddr).Const(payloadAddr).Call(w.guestRequest)
}

// Echo replies with the request payload for any operation.
func Echo() []byte {
	return guest(func(_ *Builder, w wapcImports, c *Code) {
		readRequest(w, c)
		c.Const(payloadAddr).Local(1).Call(w.guestResponse)
		c.Const(1)
	})
}

// Trap executes unreachable for any operation.
func Trap() []byte {
	return guest(func(_ *Builder, _ wapcImports, c *Code) {
		c.Op(OpUnreachable)
	})
}

// Fail reports msg as a guest error for any operation.
func Fail(msg string) []byte {
	return guest(func(b *Builder, w wapcImports, c *Code) {
		b.Data(nsAddr, []byte(msg))
		c.Const(nsAddr).Const(int32(len(msg))).Call(w.guestError)
		c.Const(0)
	})
}

// HostCall forwards the request payload to the host call (namespace,
// operation) and replies with the host's response. A host error is reported
// as a guest error. An empty operation forwards the invoked operation name.
// namespace and operation must each fit in 16 bytes.
func HostCall(namespace, operation string) []byte {
	if len(namespace) > opAddr-nsAddr || len(operation) > guestOpAddr-opAddr {
		panic("wasmtest: host call names too long")
	}
	return guest(func(b *Builder, w wapcImports, c *Code) {
		if namespace != "" {
			b.Data(nsAddr, []byte(namespace))
		}
		if operation != "" {
			b.Data(opAddr, []byte(operation))
		}

		readRequest(w, c)

		// binding is empty
		c.Const(0).Const(0)
		c.Const(nsAddr).Const(int32(len(namespace)))
		if operation != "" {
			c.Const(opAddr).Const(int32(len(operation)))
		} else {
			c.Const(guestOpAddr).Local(0)
		}
		c.Const(payloadAddr).Local(1)
		c.Call(w.hostCall)

		c.IfI32()
		c.Const(responseAddr).Call(w.hostResponse)
		c.Const(responseAddr).Call(w.hostResponseLn).Call(w.guestResponse)
		c.Const(1)
		c.Op(OpElse)
		c.Const(responseAddr).Call(w.hostError)
		c.Const(responseAddr).Call(w.hostErrorLen).Call(w.guestError)
		c.Const(0)
		c.Op(OpEnd)
	})
}

// Garbage is not a WebAssembly module.
func Garbage() []byte {
	return []byte("definitely not wasm")
}
