package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/ffi-runtime/bind"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/ownership"
)

// signatureFile is the YAML form of generator output.
type signatureFile struct {
	Signatures []signatureSpec `yaml:"signatures"`
}

type signatureSpec struct {
	Return *argSpec  `yaml:"return"`
	Name   string    `yaml:"name"`
	Policy string    `yaml:"policy"`
	Args   []argSpec `yaml:"args"`
	Throws bool      `yaml:"throws"`
}

// argSpec names its references to other arguments. Length is the name of
// the length argument, "zero-terminated", or "fixed:N".
type argSpec struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Tag       string `yaml:"tag"`
	Direction string `yaml:"direction"`
	Length    string `yaml:"length"`
	Scope     string `yaml:"scope"`
	Destroy   string `yaml:"destroy"`
	Nullable  bool   `yaml:"nullable"`
}

// LoadSignatures reads and resolves a signature file without validating
// the results.
func LoadSignatures(path string) ([]*bind.Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signatures: %w", err)
	}
	return ParseSignatures(data)
}

// ParseSignatures decodes YAML signature text.
func ParseSignatures(data []byte) ([]*bind.Signature, error) {
	var f signatureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse signatures: %w", err)
	}
	out := make([]*bind.Signature, 0, len(f.Signatures))
	for _, spec := range f.Signatures {
		s, err := spec.resolve()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (spec signatureSpec) resolve() (*bind.Signature, error) {
	s := &bind.Signature{Name: spec.Name, Throws: spec.Throws}
	switch spec.Policy {
	case "", "return":
	case "panic":
		s.Policy = errors.PolicyPanic
	default:
		return nil, fmt.Errorf("unknown policy %q", spec.Policy)
	}

	index := make(map[string]int, len(spec.Args))
	for i, a := range spec.Args {
		index[a.Name] = i
	}
	lookup := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		return bind.NoIndex
	}

	for _, a := range spec.Args {
		arg, err := a.resolve(lookup)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}
		s.Args = append(s.Args, arg)
	}
	if spec.Return != nil {
		r := *spec.Return
		if r.Direction == "" {
			r.Direction = "return"
		}
		if r.Name == "" {
			r.Name = "return"
		}
		arg, err := r.resolve(lookup)
		if err != nil {
			return nil, fmt.Errorf("return: %w", err)
		}
		s.Return = &arg
	}
	return s, nil
}

func (a argSpec) resolve(lookup func(string) int) (bind.Arg, error) {
	kind, err := bind.ParseKind(a.Kind)
	if a.Kind == "" {
		kind, err = bind.KindPlain, nil
	}
	if err != nil {
		return bind.Arg{}, err
	}
	tag, err := ownership.ParseTag(a.Tag)
	if err != nil {
		return bind.Arg{}, err
	}
	dir, err := ownership.ParseDirection(a.Direction)
	if err != nil {
		return bind.Arg{}, err
	}
	scope, err := ownership.ParseScope(a.Scope)
	if err != nil {
		return bind.Arg{}, err
	}

	arg := bind.In(a.Name, kind, tag)
	arg.Direction, arg.Scope, arg.Nullable = dir, scope, a.Nullable
	if a.Destroy != "" {
		arg.DestroyIndex = lookup(a.Destroy)
	}
	switch {
	case a.Length == "":
	case a.Length == "zero-terminated":
		arg.Length = ownership.LengthZeroTerminated
	case strings.HasPrefix(a.Length, "fixed:"):
		n, err := strconv.Atoi(strings.TrimPrefix(a.Length, "fixed:"))
		if err != nil {
			return bind.Arg{}, fmt.Errorf("length %q: %w", a.Length, err)
		}
		arg.Length, arg.FixedSize = ownership.LengthFixed, n
	default:
		arg.Length, arg.LengthIndex = ownership.LengthParam, lookup(a.Length)
	}
	return arg, nil
}

// checkSignatures prints every signature with its validation result and
// fails if any is invalid.
func checkSignatures(sigs []*bind.Signature, out io.Writer) error {
	bad := 0
	for _, s := range sigs {
		if err := s.Validate(); err != nil {
			bad++
			fmt.Fprintf(out, "FAIL %s: %v\n", s.Name, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s\n", s)
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d signatures invalid", bad, len(sigs))
	}
	return nil
}
