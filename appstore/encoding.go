package appstore

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/message"
)

// Decode undoes the transfer encoding of module bytes.
func Decode(code []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "":
		return code, nil
	case message.EncodingBrotli:
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(code)))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindEncoding, err, "decode brotli module")
		}
		return out, nil
	}
	return nil, errors.New(errors.PhaseLoad, errors.KindEncoding).
		Detail("unknown module encoding %q", encoding).
		Build()
}

// Compress brotli-encodes module bytes.
func Compress(code []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.BestCompression)
	if _, err := w.Write(code); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindEncoding, err, "compress module")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindEncoding, err, "compress module")
	}
	return buf.Bytes(), nil
}
