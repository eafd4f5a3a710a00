package compiler

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kboyd-dev/ployvm/internal/token"
	"github.com/kboyd-dev/ployvm/internal/value"
)

// atomToValue materializes a single quoted atom token into a Value at
// compile time, the way external_representation_abbr handles a bare
// quoted datum in original_source/src/ploylib/compiler.cpp. Quoted lists
// are not handled here: they are never baked into one constant-pool entry
// (the pool's structural-equality dedup only covers atoms), instead built
// at runtime from a chain of cons instructions — see pushQuotedValue.
func atomToValue(t token.Token) (value.Value, error) {
	switch t.Type {
	case token.Number:
		if strings.ContainsAny(t.Value, ".") {
			f, err := strconv.ParseFloat(t.Value, 64)
			if err != nil {
				return value.Value{}, errors.Wrapf(err, "invalid number literal %q", t.Value)
			}
			return value.Float(f), nil
		}
		i, err := strconv.ParseInt(t.Value, 10, 64)
		if err != nil {
			return value.Value{}, errors.Wrapf(err, "invalid number literal %q", t.Value)
		}
		return value.Int(i), nil
	case token.BooleanTrue:
		return value.Bool_(true), nil
	case token.BooleanFalse:
		return value.Bool_(false), nil
	case token.Character:
		return value.Chr(t.Value[0]), nil
	case token.String:
		// The language has no first-class string type distinct from a
		// quoted symbol; string literals are represented as a Symbol,
		// matching spec section 3's atom set.
		return value.Sym(t.Value), nil
	case token.Identifier:
		return value.Sym(t.Value), nil
	default:
		return value.Value{}, errors.Errorf("cannot quote token of type %s", t.Type)
	}
}
