// Package codec decodes inbound telemetry frames and encodes outbound
// control messages. The wire format is CBOR.
package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/solarview/telemetry-core-go/pkg/model"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		// packet fields always use string keys; any-typed targets should
		// decode to map[string]any instead of map[interface{}]interface{}
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// DecodeError marks a single malformed frame. Callers drop the frame and
// continue with the stream.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("frame decode failed: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Decode decodes one frame into a packet.
func Decode(data []byte) (model.Packet, error) {
	var raw map[string]any
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	return model.Packet(raw), nil
}

// Encode encodes v using deterministic encoding, so the same logical data
// always produces identical bytes.
func Encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into an arbitrary target (used for
// history service replies).
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
