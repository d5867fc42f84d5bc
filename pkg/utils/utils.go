package utils

import (
	"encoding/hex"
	"encoding/json"
	"reflect"
	"slices"

	"github.com/gowebpki/jcs"
	"github.com/modern-go/reflect2"
	"lukechampine.com/blake3"
)

func Optional[T any](args ...T) T {
	var _nil T
	for _, e := range args {
		if !reflect.DeepEqual(e, _nil) {
			return e
		}
	}
	return _nil
}

func OptionalDefaulted[T any](def T, args ...T) T {
	var _nil T
	for _, e := range args {
		if !reflect.DeepEqual(e, _nil) {
			return e
		}
	}
	return def
}

// CanonicalJSON marshals d and transforms the result into
// the JSON canonicalization scheme (RFC 8785).
func CanonicalJSON(d interface{}) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(data)
}

// HashData provides a stable hex encoded hash for
// arbitrary JSON serializable data. Byte slices and
// strings are hashed as they are.
func HashData(d interface{}) string {
	if reflect2.IsNil(d) {
		return ""
	}
	var err error
	var data []byte
	switch b := d.(type) {
	case []byte:
		data = b
	case string:
		data = []byte(b)
	default:
		data, err = CanonicalJSON(d)
		if err != nil {
			panic(err)
		}
	}
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

func TransformSlice[E any, A ~[]E, T any](in A, m func(E) T) []T {
	r := make([]T, len(in))
	for i, v := range in {
		r[i] = m(v)
	}
	return r
}

// Reversed returns a reversed copy of the given slice.
func Reversed[E any, A ~[]E](in A) A {
	r := slices.Clone(in)
	slices.Reverse(r)
	return r
}

func MapKeys[K comparable, V any](m map[K]V, cmp ...func(a, b K) int) []K {
	r := []K{}

	for k := range m {
		r = append(r, k)
	}
	if len(cmp) > 0 {
		slices.SortFunc(r, cmp[0])
	}
	return r
}

func Pointer[T any](v T) *T {
	return &v
}
