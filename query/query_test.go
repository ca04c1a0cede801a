package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backtalk/backtalk/model"
)

func TestExtract(t *testing.T) {
	answers := Extract("?a=1&b=2")
	require.Len(t, answers, 2)
	assert.Equal(t, model.Answer{Key: "a", Value: "1", Origin: model.OriginQuery}, answers[0])
	assert.Equal(t, model.Answer{Key: "b", Value: "2", Origin: model.OriginQuery}, answers[1])
}

func TestExtractWithoutLeadingSeparator(t *testing.T) {
	answers := Extract("ref=ad")
	require.Len(t, answers, 1)
	assert.Equal(t, "ref", answers[0].Key)
	assert.Equal(t, "ad", answers[0].Value)
}

func TestExtractDuplicateKeys(t *testing.T) {
	answers := Extract("?a=1&a=2")
	require.Len(t, answers, 2)
	assert.Equal(t, "1", answers[0].Value)
	assert.Equal(t, "2", answers[1].Value)
}

func TestExtractMalformed(t *testing.T) {
	malformed := []string{
		"",
		"?",
		"?a=1&b",
		"?a",
		"?a=",
		"?=1",
		"?a=1&",
		"?a b=1",
	}
	for _, raw := range malformed {
		assert.Nil(t, Extract(raw), "input %q", raw)
	}
}
