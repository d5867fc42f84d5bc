package patch

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mandelsoft/vergraph/pkg/utils"
)

// Decoder decodes the json representation of a patch kind.
type Decoder func(s *Scheme, data []byte) (Patch, error)

// Scheme decodes patches by their type discriminator.
// Kinds without a registered decoder are decoded as
// Atomic patches unless the scheme is strict.
type Scheme struct {
	lock     sync.RWMutex
	strict   bool
	decoders map[string]Decoder
}

// DefaultScheme accepts every atomic patch type.
var DefaultScheme = NewScheme(false)

func NewScheme(strict bool) *Scheme {
	return &Scheme{strict: strict, decoders: map[string]Decoder{}}
}

// Register registers a decoder for a patch kind. A nil decoder
// accepts the kind as Atomic patch.
func (s *Scheme) Register(kind string, d Decoder) error {
	if kind == "" || kind == KIND_INVERSE {
		return fmt.Errorf("%w: %q", ErrReservedKind, kind)
	}
	if d == nil {
		d = DecodeAtomic
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.decoders[kind] = d
	return nil
}

func (s *Scheme) KnownKinds() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return utils.MapKeys(s.decoders, strings.Compare)
}

// DecodeAtomic decodes any json object with a type field as Atomic patch.
func DecodeAtomic(_ *Scheme, data []byte) (Patch, error) {
	var m map[string]interface{}
	err := json.Unmarshal(data, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	typ, ok := m[TYPE_FIELD].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing type field", ErrInvalidPatch)
	}
	delete(m, TYPE_FIELD)
	return NewAtomic(typ, m)
}

func (s *Scheme) Decode(data []byte) (Patch, error) {
	var meta struct {
		Type  string          `json:"_type"`
		Patch json.RawMessage `json:"patch"`
	}
	err := json.Unmarshal(data, &meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	switch meta.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type field", ErrInvalidPatch)
	case KIND_INVERSE:
		if len(meta.Patch) == 0 {
			return nil, fmt.Errorf("%w: inverse without patch", ErrInvalidPatch)
		}
		p, err := s.Decode(meta.Patch)
		if err != nil {
			return nil, err
		}
		return Inverse{Of: p}, nil
	}

	s.lock.RLock()
	d := s.decoders[meta.Type]
	s.lock.RUnlock()
	if d == nil {
		if s.strict {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, meta.Type)
		}
		d = DecodeAtomic
	}
	return d(s, data)
}

func (s *Scheme) DecodeList(data []byte) ([]Patch, error) {
	var list []json.RawMessage
	err := json.Unmarshal(data, &list)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	result := make([]Patch, 0, len(list))
	for i, e := range list {
		p, err := s.Decode(e)
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		result = append(result, p)
	}
	return result, nil
}

func Decode(data []byte) (Patch, error) {
	return DefaultScheme.Decode(data)
}

func DecodeList(data []byte) ([]Patch, error) {
	return DefaultScheme.DecodeList(data)
}
