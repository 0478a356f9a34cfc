package assert

import "fmt"

// NotNil panics if value is nil, name is used to identify the value in the panic message.
func NotNil(value any, name string) {
	if value == nil {
		panic(fmt.Sprintf("expected %s to be not nil", name))
	}
}

func NotEmptyStr(str string, name string) {
	if str == "" {
		panic(fmt.Sprintf("expected %s to be a non-empty string", name))
	}
}

func Positive[T ~int | ~int64 | ~float64](value T, name string) {
	if value <= 0 {
		panic(fmt.Sprintf("expected %s to be positive, got %v", name, value))
	}
}
