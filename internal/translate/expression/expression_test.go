package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "idhub/pkg/domain-errors"
)

type ExpressionSuite struct {
	suite.Suite
}

func (s *ExpressionSuite) TestCompileError() {
	_, err := Compile("attr[")
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidProfile))
}

func (s *ExpressionSuite) TestEvaluateMapIndex() {
	p, err := Compile("attr['attribute']")
	require.NoError(s.T(), err)

	out, err := p.Evaluate(map[string]any{"attr": map[string]any{"attribute": "a1"}})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "a1", out)
}

func (s *ExpressionSuite) TestEvaluateMissingKeyIsNotFatal() {
	p := MustCompile("attr['missing']")
	out, err := p.Evaluate(map[string]any{"attr": map[string]any{}})
	require.NoError(s.T(), err)
	assert.Nil(s.T(), out)
}

func (s *ExpressionSuite) TestEvaluateUndefinedVariable() {
	p := MustCompile("nosuchvar['x']")
	out, err := p.Evaluate(map[string]any{})
	if err == nil {
		assert.Nil(s.T(), out)
	}
}

func (s *ExpressionSuite) TestEvaluateBool() {
	env := map[string]any{"triggered": true, "status": "pending"}

	cond := MustCompile("triggered && status == 'pending'")
	ok, err := cond.EvaluateBool(env)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	str := MustCompile("'true'")
	ok, err = str.EvaluateBool(env)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	other := MustCompile("42")
	ok, err = other.EvaluateBool(env)
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
}

func (s *ExpressionSuite) TestEvaluateHasNoSideEffectsOnEnv() {
	env := map[string]any{"groups": []any{"/A", "/B"}}
	p := MustCompile("groups[0]")

	out, err := p.Evaluate(env)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "/A", out)
	assert.Equal(s.T(), []any{"/A", "/B"}, env["groups"])
}

func TestExpressionSuite(t *testing.T) {
	suite.Run(t, new(ExpressionSuite))
}
