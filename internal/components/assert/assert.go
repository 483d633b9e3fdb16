package assert

import (
	"fmt"
	"reflect"
)

// NotNil panics if value is nil (including typed nil pointers, maps, funcs...), the
// optional name is included in the panic message.
func NotNil(value any, name ...string) {
	if value == nil {
		panic(message("expected value to be not nil", name))
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		if v.IsNil() {
			panic(message("expected value to be not nil", name))
		}
	}
}

func message(base string, name []string) string {
	if len(name) == 0 {
		return base
	}
	return fmt.Sprintf("%s: %s", base, name[0])
}
