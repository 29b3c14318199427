package bind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/ownership"
)

var invalidBind = &errors.Error{Phase: errors.PhaseBind, Kind: errors.KindInvalidInput}

func connectSignature() *Signature {
	return &Signature{
		Name: "signal_connect",
		Args: []Arg{
			In("instance", KindObject, ownership.None),
			In("signal", KindString, ownership.None),
			Callback("handler", ownership.ScopeNotified, 3),
			Destroy("notify"),
		},
		Return: Return(KindPlain, ownership.None),
	}
}

func TestValidate_Accepts(t *testing.T) {
	sigs := []*Signature{
		connectSignature(),
		{
			Name: "list_append",
			Args: []Arg{
				Array("items", ownership.Container, 1),
				In("n_items", KindPlain, ownership.None),
			},
		},
		{
			Name: "idle_add",
			Args: []Arg{Callback("fn", ownership.ScopeAsync, NoIndex)},
		},
		{
			Name:   "object_new",
			Return: Return(KindObject, ownership.Full),
		},
	}
	for _, s := range sigs {
		t.Run(s.Name, func(t *testing.T) {
			assert.NoError(t, s.Validate())
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Signature)
	}{
		{"empty name", func(s *Signature) { s.Name = "" }},
		{"unnamed arg", func(s *Signature) { s.Args[0].Name = "" }},
		{"duplicate arg", func(s *Signature) { s.Args[1].Name = "instance" }},
		{"return direction arg", func(s *Signature) { s.Args[0].Direction = ownership.Return }},
		{"container object", func(s *Signature) { s.Args[0].Tag = ownership.Container }},
		{"array without length", func(s *Signature) {
			s.Args[0] = In("items", KindArray, ownership.None)
		}},
		{"length self reference", func(s *Signature) { s.Args[0] = Array("items", ownership.None, 0) }},
		{"length out of range", func(s *Signature) { s.Args[0] = Array("items", ownership.None, 9) }},
		{"length names a string", func(s *Signature) { s.Args[0] = Array("items", ownership.None, 1) }},
		{"zero fixed size", func(s *Signature) {
			a := In("items", KindArray, ownership.None)
			a.Length = ownership.LengthFixed
			s.Args[0] = a
		}},
		{"length on object", func(s *Signature) { s.Args[0].Length = ownership.LengthZeroTerminated }},
		{"string with param length", func(s *Signature) { s.Args[1].Length = ownership.LengthParam }},
		{"destroy missing", func(s *Signature) { s.Args[2].DestroyIndex = 1 }},
		{"destroy out of range", func(s *Signature) { s.Args[2].DestroyIndex = 7 }},
		{"unpaired destroy", func(s *Signature) {
			s.Args[2] = Callback("handler", ownership.ScopeCall, NoIndex)
		}},
		{"call scope with destroy", func(s *Signature) {
			s.Args[2] = Callback("handler", ownership.ScopeCall, 3)
		}},
		{"output callback", func(s *Signature) { s.Args[2].Direction = ownership.Out }},
		{"return without return direction", func(s *Signature) { s.Return.Direction = ownership.Out }},
		{"callback return", func(s *Signature) { s.Return = Return(KindCallback, ownership.None) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := connectSignature()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, invalidBind)
		})
	}
}

func TestValidate_ErrorPath(t *testing.T) {
	s := connectSignature()
	s.Args[2].DestroyIndex = 1

	var e *errors.Error
	require.ErrorAs(t, s.Validate(), &e)
	assert.Equal(t, []string{"signal_connect", "handler"}, e.Path)
}

func TestSignature_Surface(t *testing.T) {
	s := connectSignature()
	err := errors.NotFound(errors.PhaseBind, "signal", "changed")

	assert.Same(t, err, s.Surface(err))
	assert.Nil(t, s.Surface(nil))

	s.Policy = errors.PolicyPanic
	assert.Panics(t, func() { _ = s.Surface(err) })
}

func TestSignature_String(t *testing.T) {
	s := &Signature{
		Name:   "list_append",
		Args:   []Arg{Array("items", ownership.Container, 1), In("n_items", KindPlain, ownership.None)},
		Return: Return(KindObject, ownership.Full),
		Throws: true,
	}
	assert.Equal(t,
		"list_append(in array items container len=#1, in plain n_items none) -> object full throws",
		s.String())
}

func ownOf() wit.Type { return &wit.TypeDef{Kind: &wit.Own{}} }
func borrow() wit.Type { return &wit.TypeDef{Kind: &wit.Borrow{}} }

func TestFromWIT_Params(t *testing.T) {
	s, err := FromWIT("set_label", []wit.Param{
		{Name: "self", Type: borrow()},
		{Name: "label", Type: wit.String{}},
		{Name: "child", Type: ownOf()},
		{Name: "count", Type: wit.U32{}},
	}, nil)
	require.NoError(t, err)

	require.Len(t, s.Args, 4)
	assert.Equal(t, KindObject, s.Args[0].Kind)
	assert.Equal(t, ownership.None, s.Args[0].Tag)
	assert.Equal(t, KindString, s.Args[1].Kind)
	assert.Equal(t, ownership.LengthZeroTerminated, s.Args[1].Length)
	assert.Equal(t, ownership.None, s.Args[1].Tag)
	assert.Equal(t, ownership.Full, s.Args[2].Tag)
	assert.True(t, s.Args[2].Transfers())
	assert.Equal(t, KindPlain, s.Args[3].Kind)
	assert.Nil(t, s.Return)
	assert.False(t, s.Throws)
}

func TestFromWIT_ListSynthesizesLength(t *testing.T) {
	s, err := FromWIT("append_all", []wit.Param{
		{Name: "values", Type: &wit.TypeDef{Kind: &wit.List{Type: wit.U32{}}}},
		{Name: "children", Type: &wit.TypeDef{Kind: &wit.List{Type: ownOf()}}},
	}, nil)
	require.NoError(t, err)

	require.Len(t, s.Args, 4)
	assert.Equal(t, []string{"values", "n_values", "children", "n_children"},
		[]string{s.Args[0].Name, s.Args[1].Name, s.Args[2].Name, s.Args[3].Name})
	assert.Equal(t, 1, s.Args[0].LengthIndex)
	assert.Equal(t, ownership.None, s.Args[0].Tag)
	assert.Equal(t, 3, s.Args[2].LengthIndex)
	assert.Equal(t, ownership.Full, s.Args[2].Tag)
}

func TestFromWIT_Results(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		s, err := FromWIT("get_label", []wit.Param{{Name: "self", Type: borrow()}}, wit.String{})
		require.NoError(t, err)
		require.NotNil(t, s.Return)
		assert.Equal(t, KindString, s.Return.Kind)
		assert.Equal(t, ownership.Full, s.Return.Tag)
	})

	t.Run("list", func(t *testing.T) {
		s, err := FromWIT("children", nil, &wit.TypeDef{Kind: &wit.List{Type: ownOf()}})
		require.NoError(t, err)
		require.Len(t, s.Args, 1)
		assert.Equal(t, "n_return", s.Args[0].Name)
		assert.Equal(t, ownership.Out, s.Args[0].Direction)
		assert.Equal(t, 0, s.Return.LengthIndex)
	})

	t.Run("result", func(t *testing.T) {
		s, err := FromWIT("open", nil, &wit.TypeDef{Kind: &wit.Result{OK: ownOf(), Err: wit.String{}}})
		require.NoError(t, err)
		assert.True(t, s.Throws)
		assert.Equal(t, KindObject, s.Return.Kind)
		assert.Equal(t, ownership.Full, s.Return.Tag)
	})

	t.Run("option", func(t *testing.T) {
		s, err := FromWIT("parent", nil, &wit.TypeDef{Kind: &wit.Option{Type: ownOf()}})
		require.NoError(t, err)
		assert.True(t, s.Return.Nullable)
		assert.Equal(t, KindObject, s.Return.Kind)
	})

	t.Run("record", func(t *testing.T) {
		s, err := FromWIT("bounds", nil, &wit.TypeDef{Kind: &wit.Record{}})
		require.NoError(t, err)
		assert.Equal(t, KindBoxed, s.Return.Kind)
		assert.Equal(t, ownership.Full, s.Return.Tag)
	})
}

func TestFromWIT_Rejects(t *testing.T) {
	_, err := FromWIT("peek", nil, borrow())
	assert.ErrorIs(t, err, invalidBind)

	_, err = FromWIT("bad", []wit.Param{{Name: "x", Type: &wit.TypeDef{}}}, nil)
	assert.ErrorIs(t, err, invalidBind)
}
