package reflectx

import "reflect"

// ResultImplements reports whether any result of the function implements the
// interface T. The executor uses this to spot tools that hand the
// conversation to another agent.
func ResultImplements[T any](function any) bool {
	if function == nil {
		return false
	}

	var fnType reflect.Type
	switch v := function.(type) {
	case reflect.Type:
		fnType = v
	default:
		fnType = reflect.TypeOf(function)
	}
	if fnType.Kind() != reflect.Func {
		return false
	}

	var zero T
	ifaceType := reflect.TypeOf(&zero).Elem()

	for i := 0; i < fnType.NumOut(); i++ {
		if fnType.Out(i).Implements(ifaceType) {
			return true
		}
	}
	return false
}
