package cache

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = ":"

// EmptyMarker stands in for an absent key component so that "absent" and
// "empty" never collapse into the same key.
const EmptyMarker = "nil"

// AnonymousActor is the actor namespace used for unauthenticated callers.
const AnonymousActor = "anonymous"

// KeyInput carries the identity of an operation for key derivation.
type KeyInput struct {
	// ExplicitKey pins the key, bypassing derivation (e.g. "users:all").
	ExplicitKey string
	Method      string
	Path        string
	// Actor is the authenticated user id, empty for anonymous callers.
	Actor  string
	Params any
	Query  any
	Body   any
}

// KeyCodec builds a cache key from an operation's identity.
// It is responsible for producing stable keys across calls.
type KeyCodec interface {
	DeriveKey(in KeyInput) string
}

// defaultKeyCodec implements KeyCodec using reflection-based canonical serialization.
// Parts are concatenated, never hashed, so keys stay human-inspectable.
type defaultKeyCodec struct{}

// NewDefaultKeyCodec creates a new instance of the default key codec.
func NewDefaultKeyCodec() KeyCodec {
	return &defaultKeyCodec{}
}

// IsMutatingMethod reports whether the verb creates or updates a resource.
// Only these verbs contribute the request body to the derived key.
func IsMutatingMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "POST", "PUT", "PATCH":
		return true
	default:
		return false
	}
}

// ActorNamespace returns "user:<id>" for authenticated actors and
// "anonymous" otherwise.
func ActorNamespace(actor string) string {
	if actor == "" {
		return AnonymousActor
	}
	return "user" + KeySeparator + actor
}

// DeriveKey returns the explicit key when present, otherwise
// method:path:actor:params:query[:body].
func (c *defaultKeyCodec) DeriveKey(in KeyInput) string {
	if in.ExplicitKey != "" {
		return in.ExplicitKey
	}

	method := strings.ToUpper(in.Method)
	parts := []string{
		method,
		in.Path,
		ActorNamespace(in.Actor),
		c.serializeValue(in.Params),
		c.serializeValue(in.Query),
	}

	if IsMutatingMethod(method) {
		parts = append(parts, c.serializeValue(in.Body))
	}

	return strings.Join(parts, KeySeparator)
}

// serializeValue handles individual component serialization based on type.
func (c *defaultKeyCodec) serializeValue(v any) string {
	if v == nil {
		return EmptyMarker
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	if rt.Kind() == reflect.Ptr && rv.IsNil() {
		return EmptyMarker
	}

	// Values like time.Time and uuid.UUID have a canonical text form.
	if tm, ok := v.(encoding.TextMarshaler); ok {
		if text, err := tm.MarshalText(); err == nil {
			return strconv.Quote(string(text))
		}
	}

	switch rt.Kind() {
	case reflect.Ptr:
		return c.serializeValue(rv.Elem().Interface())
	case reflect.Map:
		if rv.IsNil() {
			return EmptyMarker
		}
		return c.serializeMap(rv)
	case reflect.Slice:
		if rv.IsNil() {
			return EmptyMarker
		}
		// Raw bodies arrive as bytes; keep them readable.
		if rt.Elem().Kind() == reflect.Uint8 {
			return strconv.Quote(string(rv.Bytes()))
		}
		return c.serializeList(rv)
	case reflect.Array:
		return c.serializeList(rv)
	case reflect.Struct:
		return c.serializeStruct(rv, rt)
	case reflect.String:
		return strconv.Quote(rv.String())
	case reflect.Func, reflect.Chan:
		return fmt.Sprintf("%s:%p", rt.Kind(), v)
	}

	if c.isBasicType(rt.Kind()) {
		return fmt.Sprintf("%v", v)
	}

	return c.jsonFallback(v)
}

func (c *defaultKeyCodec) serializeList(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parts[i] = c.serializeValue(rv.Index(i).Interface())
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// serializeMap handles map serialization with sorted keys for determinism
func (c *defaultKeyCodec) serializeMap(rv reflect.Value) string {
	type pair struct {
		key   string
		value string
	}

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{
			key:   c.serializeValue(iter.Key().Interface()),
			value: c.serializeValue(iter.Value().Interface()),
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].key < pairs[j].key
	})

	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.key + "=" + p.value
	}

	return "{" + strings.Join(out, ",") + "}"
}

// serializeStruct handles struct serialization with field names
func (c *defaultKeyCodec) serializeStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+"="+c.serializeValue(rv.Field(i).Interface()))
	}

	return "{" + strings.Join(parts, ",") + "}"
}

// isBasicType checks if a kind represents a basic Go type
func (c *defaultKeyCodec) isBasicType(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}

// jsonFallback provides JSON serialization as a last resort
func (c *defaultKeyCodec) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + reflect.TypeOf(v).String()
	}
	return string(data)
}
