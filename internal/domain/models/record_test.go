package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordKeepsInsertionOrder(t *testing.T) {
	r := NewRecord()
	r.Set("zone", Text("AFO"))
	r.Set("station code", Text("CI001"))
	r.Set("zone", Text("ACE"))

	assert.Equal(t, []string{"zone", "station code"}, r.Keys())
	assert.Equal(t, "ACE", r.Get("zone").Text)
}

func TestRecordDeleteAndProject(t *testing.T) {
	r := NewRecord()
	r.Set("a", Text("1"))
	r.Set("b", Null())
	r.Set("c", Number(3))

	p := r.Project([]string{"c", "missing", "b"})
	assert.Equal(t, []string{"c", "b"}, p.Keys())
	assert.True(t, p.Has("b"))
	assert.True(t, p.Get("b").IsNull())

	r.Delete("b")
	assert.Equal(t, []string{"a", "c"}, r.Keys())
	assert.False(t, r.Has("b"))
}

func TestRecordCloneIsIndependent(t *testing.T) {
	r := NewRecord()
	r.Set("ep11", Text("yes"))
	c := r.Clone()
	c.Set("ep11", Number(100))
	c.Set("extra", Text("x"))

	assert.Equal(t, "yes", r.Get("ep11").Text)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "100", c.Get("ep11").String())
}

func TestValueRendering(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"integral number", Number(12), "12"},
		{"fraction", Number(12.5), "12.5"},
		{"text kept", Text(" x "), " x "},
		{"empty text", Text(""), ""},
		{"bool", Bool(true), "1"},
		{"null", Null(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.String())
		})
	}

	assert.Nil(t, Null().SQL())
	assert.Equal(t, "", Text("").SQL())
}

func TestValueFlag(t *testing.T) {
	assert.Equal(t, "yes", Text("  YES ").Flag())
	assert.Equal(t, "", Text("NaN").Flag())
	assert.Equal(t, "", Text("   ").Flag())
	assert.Equal(t, "", Null().Flag())
	assert.Equal(t, "1", Number(1).Flag())
}
