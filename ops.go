package sparsecs

import (
	"reflect"
	"unsafe"

	"github.com/rotisserie/eris"
)

// TypeInfo describes a component type as seen by the registry. It is what
// the reflection-info queries hand to their callbacks.
type TypeInfo struct {
	Type  reflect.Type `json:"-"`
	Name  string       `json:"name"`
	Size  uintptr      `json:"size"`
	Align uintptr      `json:"align"`
	Key   ComponentKey `json:"key"`
}

// Cloner is implemented by component types that need a deep copy when the
// registry copies or clones them. Clone is called on the source value.
type Cloner[T any] interface {
	Clone() T
}

// Uncopyable is implemented by component types that must never be copied
// between entities. Copy, CopyAll and Clone panic with ErrUncopyable for
// such types; Move is still allowed.
type Uncopyable interface {
	Uncopyable()
}

// componentOps is the erased operation table of one component type. Columns
// only touch their elements through it.
type componentOps interface {
	info() TypeInfo
	// alloc returns the base address of a zeroed backing array of n elements
	// and the value that owns it.
	alloc(n int) (unsafe.Pointer, any)
	destroy(p unsafe.Pointer)
	copy(dst, src unsafe.Pointer)
	// assign is a shallow relocation; src is left untouched.
	assign(dst, src unsafe.Pointer)
	// move relocates src into dst and zeroes src.
	move(dst, src unsafe.Pointer)
}

var uncopyableType = reflect.TypeFor[Uncopyable]()

func isUncopyable(t reflect.Type) bool {
	return t.Implements(uncopyableType) || reflect.PointerTo(t).Implements(uncopyableType)
}

func typeInfoOf(t reflect.Type) TypeInfo {
	return TypeInfo{
		Type:  t,
		Name:  t.String(),
		Size:  t.Size(),
		Align: uintptr(t.Align()),
	}
}

// typedOps is the operation table built by the generic factory. It is the
// one used by every typed accessor.
type typedOps[T any] struct {
	ti        TypeInfo
	noCopy    bool
	cloneable bool
}

func newTypedOps[T any]() *typedOps[T] {
	t := reflect.TypeFor[T]()
	var zero T
	_, cloneable := any(zero).(Cloner[T])
	return &typedOps[T]{
		ti:        typeInfoOf(t),
		noCopy:    isUncopyable(t),
		cloneable: cloneable,
	}
}

func (o *typedOps[T]) info() TypeInfo { return o.ti }

func (o *typedOps[T]) alloc(n int) (unsafe.Pointer, any) {
	s := make([]T, n)
	return unsafe.Pointer(unsafe.SliceData(s)), s
}

func (o *typedOps[T]) destroy(p unsafe.Pointer) {
	var zero T
	*(*T)(p) = zero
}

func (o *typedOps[T]) copy(dst, src unsafe.Pointer) {
	if o.noCopy {
		panic(eris.Wrapf(ErrUncopyable, "copy %s", o.ti.Name))
	}
	if o.cloneable {
		*(*T)(dst) = any(*(*T)(src)).(Cloner[T]).Clone()
		return
	}
	*(*T)(dst) = *(*T)(src)
}

func (o *typedOps[T]) assign(dst, src unsafe.Pointer) {
	*(*T)(dst) = *(*T)(src)
}

func (o *typedOps[T]) move(dst, src unsafe.Pointer) {
	var zero T
	*(*T)(dst) = *(*T)(src)
	*(*T)(src) = zero
}

// reflectOps serves component types first seen through an erased value,
// e.g. CreateEntityWith. The backing array is built with reflect.MakeSlice
// so typed accessors can still address it directly.
type reflectOps struct {
	ti        TypeInfo
	noCopy    bool
	cloneFunc reflect.Value
}

func newReflectOps(t reflect.Type) *reflectOps {
	o := &reflectOps{
		ti:     typeInfoOf(t),
		noCopy: isUncopyable(t),
	}
	if m, ok := t.MethodByName("Clone"); ok && m.Type.NumIn() == 1 && m.Type.NumOut() == 1 && m.Type.Out(0) == t {
		o.cloneFunc = m.Func
	}
	return o
}

func (o *reflectOps) info() TypeInfo { return o.ti }

func (o *reflectOps) alloc(n int) (unsafe.Pointer, any) {
	s := reflect.MakeSlice(reflect.SliceOf(o.ti.Type), n, n)
	return s.UnsafePointer(), s.Interface()
}

func (o *reflectOps) at(p unsafe.Pointer) reflect.Value {
	return reflect.NewAt(o.ti.Type, p).Elem()
}

func (o *reflectOps) destroy(p unsafe.Pointer) {
	o.at(p).SetZero()
}

func (o *reflectOps) copy(dst, src unsafe.Pointer) {
	if o.noCopy {
		panic(eris.Wrapf(ErrUncopyable, "copy %s", o.ti.Name))
	}
	if o.cloneFunc.IsValid() {
		o.at(dst).Set(o.cloneFunc.Call([]reflect.Value{o.at(src)})[0])
		return
	}
	o.at(dst).Set(o.at(src))
}

func (o *reflectOps) assign(dst, src unsafe.Pointer) {
	o.at(dst).Set(o.at(src))
}

func (o *reflectOps) move(dst, src unsafe.Pointer) {
	o.at(dst).Set(o.at(src))
	o.at(src).SetZero()
}
