package compiler

import "github.com/pkg/errors"

const maxVarsPerScope = 255

// varKind distinguishes a frame-local stack variable from one that has
// been captured by (at least) one nested closure and must therefore be
// accessed through its Ref box.
type varKind int

const (
	varStack varKind = iota
	varShared
)

// LambdaScope is the compile-time analogue of one lambda_context: the set
// of names bound directly in one lambda's frame, split into plain stack
// vars and vars that some nested lambda captures.
type LambdaScope struct {
	stackVars  []string
	sharedVars []string
}

func newLambdaScope() *LambdaScope {
	return &LambdaScope{}
}

func (s *LambdaScope) addStackVar(name string) (byte, error) {
	if len(s.stackVars) >= maxVarsPerScope {
		return 0, errors.New("too many stack variables in one scope")
	}
	s.stackVars = append(s.stackVars, name)
	return byte(len(s.stackVars) - 1), nil
}

func (s *LambdaScope) addSharedVar(name string) (byte, error) {
	if len(s.sharedVars) >= maxVarsPerScope {
		return 0, errors.New("too many shared variables in one scope")
	}
	s.sharedVars = append(s.sharedVars, name)
	return byte(len(s.sharedVars) - 1), nil
}

// findStackVar / findSharedVar search from the most recently added entry
// backward, so that a later definition of the same name shadows an
// earlier one in the same scope.
func (s *LambdaScope) findStackVar(name string) (byte, bool) {
	for i := len(s.stackVars) - 1; i >= 0; i-- {
		if s.stackVars[i] == name {
			return byte(i), true
		}
	}
	return 0, false
}

func (s *LambdaScope) findSharedVar(name string) (byte, bool) {
	for i := len(s.sharedVars) - 1; i >= 0; i-- {
		if s.sharedVars[i] == name {
			return byte(i), true
		}
	}
	return 0, false
}
