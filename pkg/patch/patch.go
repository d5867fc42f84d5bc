package patch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"
	"lukechampine.com/blake3"

	"github.com/mandelsoft/vergraph/pkg/utils"
)

const (
	// TYPE_FIELD is the discriminator field of an encoded patch.
	TYPE_FIELD = "_type"

	KIND_INVERSE = "inv"
	// INVERSE_FIELD holds the inverted patch of an inverse patch.
	INVERSE_FIELD = "patch"
)

var (
	ErrUnknownKind  = errors.New("unknown patch kind")
	ErrReservedKind = errors.New("reserved patch kind")
	ErrInvalidPatch = errors.New("invalid patch")
)

// Patch describes a transformation of a version.
// The built-in kinds are Atomic, an opaque domain patch, and
// Inverse, the reverse of another patch. Additional kinds can be
// provided by registering a decoder at a Scheme.
type Patch interface {
	// Kind returns the value of the type discriminator.
	Kind() string
	json.Marshaler
}

////////////////////////////////////////////////////////////////////////////////

// Atomic is a domain patch opaque to the version graph.
// Its data is the canonical json object including the type discriminator.
type Atomic struct {
	Type string
	Data json.RawMessage
}

var _ Patch = Atomic{}

// NewAtomic creates an atomic patch of the given type. Fields
// must serialize to a json object (or be nil).
func NewAtomic(typ string, fields interface{}) (Atomic, error) {
	if typ == "" || typ == KIND_INVERSE {
		return Atomic{}, fmt.Errorf("%w: %q", ErrReservedKind, typ)
	}
	m := map[string]interface{}{}
	if fields != nil {
		data, err := json.Marshal(fields)
		if err != nil {
			return Atomic{}, err
		}
		err = json.Unmarshal(data, &m)
		if err != nil {
			return Atomic{}, fmt.Errorf("%w: fields of %q are no object: %w", ErrInvalidPatch, typ, err)
		}
	}
	m[TYPE_FIELD] = typ
	data, err := utils.CanonicalJSON(m)
	if err != nil {
		return Atomic{}, err
	}
	return Atomic{Type: typ, Data: data}, nil
}

// MustAtomic is NewAtomic for statically known valid patches.
func MustAtomic(typ string, fields interface{}) Atomic {
	p, err := NewAtomic(typ, fields)
	if err != nil {
		panic(err)
	}
	return p
}

func (a Atomic) Kind() string {
	return a.Type
}

func (a Atomic) MarshalJSON() ([]byte, error) {
	return a.Data, nil
}

// Decode unmarshals the patch data into v.
func (a Atomic) Decode(v interface{}) error {
	return json.Unmarshal(a.Data, v)
}

func (a Atomic) String() string {
	return string(a.Data)
}

////////////////////////////////////////////////////////////////////////////////

// Inverse is the reverse of another patch.
type Inverse struct {
	Of Patch
}

var _ Patch = Inverse{}

func (i Inverse) Kind() string {
	return KIND_INVERSE
}

func (i Inverse) MarshalJSON() ([]byte, error) {
	if i.Of == nil {
		return nil, fmt.Errorf("%w: inverse without patch", ErrInvalidPatch)
	}
	of, err := Encode(i.Of)
	if err != nil {
		return nil, err
	}
	return utils.CanonicalJSON(map[string]interface{}{
		TYPE_FIELD:    KIND_INVERSE,
		INVERSE_FIELD: json.RawMessage(of),
	})
}

func (i Inverse) String() string {
	return fmt.Sprintf("inv(%v)", i.Of)
}

////////////////////////////////////////////////////////////////////////////////

// Encode provides the canonical json encoding of a patch.
func Encode(p Patch) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidPatch)
	}
	data, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return jcs.Transform(data)
}

// EncodeList provides the canonical json encoding of a patch sequence.
func EncodeList(list []Patch) ([]byte, error) {
	if list == nil {
		list = []Patch{}
	}
	return utils.CanonicalJSON(list)
}

// Digest returns the hex encoded BLAKE3 hash of the canonical encoding.
func Digest(p Patch) (string, error) {
	data, err := Encode(p)
	if err != nil {
		return "", err
	}
	return DigestData(data), nil
}

func DigestData(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

// Equal compares patches by their canonical encoding.
func Equal(a, b Patch) bool {
	if a == nil || b == nil {
		return a == b
	}
	da, err := Encode(a)
	if err != nil {
		return false
	}
	db, err := Encode(b)
	if err != nil {
		return false
	}
	return string(da) == string(db)
}

// EqualList compares patch sequences element-wise.
func EqualList(a, b []Patch) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Invert returns the reverse of a patch. Inverting an
// inverse yields the original patch.
func Invert(p Patch) Patch {
	if i, ok := p.(Inverse); ok {
		return i.Of
	}
	return Inverse{Of: p}
}

// InvertAll returns the sequence undoing the given sequence:
// every patch inverted, in reverse order.
func InvertAll(list []Patch) []Patch {
	result := make([]Patch, len(list))
	for i, p := range list {
		result[len(list)-1-i] = Invert(p)
	}
	return result
}
