package keys

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeCollidesNumericForms(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"123", "123"},
		{"123.0", "123"},
		{" 123.00 ", "123"},
		{123, "123"},
		{float64(123), "123"},
		{int64(123), "123"},
		{json.Number("123"), "123"},
		{"  ABC-7 ", "abc-7"},
		{"12.5", "12.5"},
		{12.5, "12.5"},
		{"1.0a", "1.0a"},
		{nil, ""},
		{true, "true"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%#v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSortedKeys(t *testing.T) {
	got := SortedKeys(map[string]any{"b": 1, "a": 2, "C": 3})
	want := []string{"C", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestBlank(t *testing.T) {
	if !Blank(nil) || !Blank("  ") {
		t.Fatal("nil and whitespace should be blank")
	}
	if Blank(0) || Blank("x") {
		t.Fatal("0 and x are not blank")
	}
}
