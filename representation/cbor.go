package representation

import (
	"github.com/acksell/registers/entry"
	"github.com/fxamacker/cbor/v2"
)

var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// CBOR renders the same shape as JSON using deterministic CBOR.
type CBOR struct{}

func (CBOR) Suffix() string      { return "cbor" }
func (CBOR) ContentType() string { return "application/cbor" }

func (CBOR) Encode(e entry.Entry) ([]byte, error) {
	return cborMode.Marshal(wrap(e))
}

func (CBOR) EncodeMany(entries []entry.Entry) ([]byte, error) {
	return cborMode.Marshal(wrapAll(entries))
}
