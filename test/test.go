// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

// Package test provides small assertion helpers shared by every package's
// test suite, in place of a third-party assertion library.
package test

import (
	"math"
	"reflect"
	"testing"
)

// ExpectSuccess fails the test unless got is a "successful" result: a nil
// error, a boolean true, or a nil value of any other type.
func ExpectSuccess(t *testing.T, got interface{}) {
	t.Helper()

	switch v := got.(type) {
	case nil:
		return
	case error:
		if v != nil {
			t.Errorf("unexpected error: %v", v)
		}
	case bool:
		if !v {
			t.Errorf("expected success, got false")
		}
	default:
		rv := reflect.ValueOf(got)
		switch rv.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
			if !rv.IsNil() {
				t.Errorf("expected success (nil), got %v", got)
			}
		default:
			t.Errorf("unexpected type for ExpectSuccess: %T", got)
		}
	}
}

// ExpectFailure fails the test unless got represents failure: a non-nil
// error or a boolean false.
func ExpectFailure(t *testing.T, got interface{}) {
	t.Helper()

	switch v := got.(type) {
	case error:
		if v == nil {
			t.Errorf("expected an error, got nil")
		}
	case bool:
		if v {
			t.Errorf("expected failure, got true")
		}
	default:
		t.Errorf("unexpected type for ExpectFailure: %T", got)
	}
}

// ExpectEquality fails the test unless got and want are deeply equal.
func ExpectEquality(t *testing.T, got, want interface{}) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("values are not equal\ngot:  %#v\nwant: %#v", got, want)
	}
}

// ExpectInequality fails the test if got and want are deeply equal.
func ExpectInequality(t *testing.T, got, want interface{}) {
	t.Helper()
	if reflect.DeepEqual(got, want) {
		t.Errorf("values are unexpectedly equal: %#v", got)
	}
}

// ExpectApproximate fails the test unless got and want are within tolerance
// of one another. Values are converted to float64 for the comparison.
func ExpectApproximate(t *testing.T, got, want interface{}, tolerance float64) {
	t.Helper()

	g, ok := toFloat(got)
	if !ok {
		t.Errorf("cannot convert %T to a number", got)
		return
	}
	w, ok := toFloat(want)
	if !ok {
		t.Errorf("cannot convert %T to a number", want)
		return
	}

	if math.Abs(g-w) > tolerance {
		t.Errorf("values are not approximately equal: got %v, want %v (tolerance %v)", got, want, tolerance)
	}
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
