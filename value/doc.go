// Package value implements a type-erased value box with a runtime type tag.
//
// A Value is read and written through traits, selected at compile time by
// the trait argument's static type:
//
//	var v value.Value
//	_ = value.Set(&v, value.Int, 5)
//	n, _ := value.Get(&v, value.Int)    // 5
//	_, err := value.Get(&v, value.String) // type mismatch
//	s, _ := value.Transform(&v, value.String, nil) // "5"
//
// Object and boxed values hold their own reference or copy, released by
// Reset, Unset or a later Set.
package value
