package reflectx

import "reflect"

// IsRefinedType reports whether value is exactly the type R. Used to single
// out injected parameters (context variables) in tool signatures.
func IsRefinedType[R any](value reflect.Type) bool {
	var toMatch R
	return reflect.TypeOf(toMatch) == value
}
