// Package value defines the typed union stored in a parameter map entry.
package value

import (
	"strconv"
	"strings"
)

// Kind identifies which concrete variant a Value holds.
type Kind int

const (
	KindInt64 Kind = iota
	KindInt32
	KindFloat64
	KindFloat32
	KindBool
	KindString
	KindImage
	KindImageList
	KindModel
	KindStringList
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "INT64"
	case KindInt32:
		return "INT32"
	case KindFloat64:
		return "FLOAT64"
	case KindFloat32:
		return "FLOAT32"
	case KindBool:
		return "BOOL"
	case KindString:
		return "STRING"
	case KindImage:
		return "IMAGE"
	case KindImageList:
		return "IMAGE_LIST"
	case KindModel:
		return "MODEL"
	case KindStringList:
		return "STRING_LIST"
	}
	return "UNKNOWN"
}

// Value is the interface every concrete typed-value variant implements.
type Value interface {
	// Kind identifies the concrete variant.
	Kind() Kind
	// String returns the textual form used for metadata emission. Ignore-if
	// comparison and clean hooks work on the raw text instead.
	String() string
	// IsEmpty reports whether the value is the zero value of its kind.
	IsEmpty() bool
}

// Int64 is a 64-bit integer value.
type Int64 struct{ V int64 }

func (v Int64) Kind() Kind     { return KindInt64 }
func (v Int64) String() string { return strconv.FormatInt(v.V, 10) }
func (v Int64) IsEmpty() bool  { return false }

// Int32 is a 32-bit integer value.
type Int32 struct{ V int32 }

func (v Int32) Kind() Kind     { return KindInt32 }
func (v Int32) String() string { return strconv.FormatInt(int64(v.V), 10) }
func (v Int32) IsEmpty() bool  { return false }

// Float64 is a double-precision decimal value.
type Float64 struct{ V float64 }

func (v Float64) Kind() Kind     { return KindFloat64 }
func (v Float64) String() string { return strconv.FormatFloat(v.V, 'g', -1, 64) }
func (v Float64) IsEmpty() bool  { return false }

// Float32 is a single-precision decimal value.
type Float32 struct{ V float32 }

func (v Float32) Kind() Kind     { return KindFloat32 }
func (v Float32) String() string { return strconv.FormatFloat(float64(v.V), 'g', -1, 32) }
func (v Float32) IsEmpty() bool  { return false }

// Bool is a boolean value.
type Bool struct{ V bool }

func (v Bool) Kind() Kind     { return KindBool }
func (v Bool) String() string { return strconv.FormatBool(v.V) }
func (v Bool) IsEmpty() bool  { return !v.V }

// String is a text value.
type String struct{ V string }

func (v String) Kind() Kind     { return KindString }
func (v String) String() string { return v.V }
func (v String) IsEmpty() bool  { return v.V == "" }

// Image holds a decoded reference to a single image blob.
// The core never interprets the bytes; it is an opaque reference produced by
// decoding the textual blob reference given to set_raw.
type Image struct {
	Ref string
}

func (v Image) Kind() Kind     { return KindImage }
func (v Image) String() string { return v.Ref }
func (v Image) IsEmpty() bool  { return v.Ref == "" }

// ImageList holds an ordered list of image references.
type ImageList struct{ Refs []string }

func (v ImageList) Kind() Kind     { return KindImageList }
func (v ImageList) String() string { return strings.Join(v.Refs, "|") }
func (v ImageList) IsEmpty() bool  { return len(v.Refs) == 0 }

// Model holds a resolved canonical model handle.
type Model struct {
	Canonical string
	Subtype   string
}

func (v Model) Kind() Kind     { return KindModel }
func (v Model) String() string { return v.Canonical }
func (v Model) IsEmpty() bool  { return v.Canonical == "" }

// StringList holds an ordered list of strings (LIST data type).
type StringList struct{ Items []string }

func (v StringList) Kind() Kind     { return KindStringList }
func (v StringList) String() string { return strings.Join(v.Items, ",") }
func (v StringList) IsEmpty() bool  { return len(v.Items) == 0 }

// NarrowInt32 narrows a 64-bit integer value down to 32 bits on read, for
// descriptors declared with a 32-bit width.
func NarrowInt32(v Value) Value {
	if iv, ok := v.(Int64); ok {
		return Int32{V: int32(iv.V)}
	}
	return v
}

// NarrowFloat32 narrows a double value down to single precision on read,
// for descriptors declared with a 32-bit width.
func NarrowFloat32(v Value) Value {
	if fv, ok := v.(Float64); ok {
		return Float32{V: float32(fv.V)}
	}
	return v
}
