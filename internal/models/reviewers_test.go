package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewerListContains(t *testing.T) {
	l := ReviewerList{"u1", "u2"}

	assert.True(t, l.Contains("u1"))
	assert.True(t, l.Contains("u2"))
	assert.False(t, l.Contains("u3"))
	assert.False(t, ReviewerList(nil).Contains("u1"))
}

func TestReviewerListReplacePreservesOrder(t *testing.T) {
	l := ReviewerList{"u1", "u2", "u3"}

	ok := l.Replace("u2", "u9")

	assert.True(t, ok)
	assert.Equal(t, ReviewerList{"u1", "u9", "u3"}, l)

	assert.False(t, l.Replace("missing", "u5"))
	assert.Equal(t, ReviewerList{"u1", "u9", "u3"}, l)
}

func TestReviewerListRemove(t *testing.T) {
	l := ReviewerList{"u1", "u2", "u3"}

	out := l.Remove("u2")

	assert.Equal(t, ReviewerList{"u1", "u3"}, out)
	assert.Equal(t, ReviewerList{"u1", "u2", "u3"}, l)

	assert.Equal(t, ReviewerList{"u1", "u3"}, out.Remove("missing"))
}

func TestReviewerListClone(t *testing.T) {
	l := ReviewerList{"u1", "u2"}
	c := l.Clone()

	c.Replace("u1", "u9")

	assert.Equal(t, ReviewerList{"u1", "u2"}, l)
	assert.Equal(t, ReviewerList{"u9", "u2"}, c)
	assert.Nil(t, ReviewerList(nil).Clone())
}
