package util

import "testing"

func TestParseFloatPtr(t *testing.T) {
	if got := ParseFloatPtr("4.5"); got == nil || *got != 4.5 {
		t.Errorf("ParseFloatPtr(4.5) = %v", got)
	}
	if got := ParseFloatPtr("4,5 stars"); got == nil || *got != 4.5 {
		t.Errorf("ParseFloatPtr(4,5 stars) = %v", got)
	}
	if got := ParseFloatPtr(""); got != nil {
		t.Errorf("ParseFloatPtr(empty) = %v, want nil", got)
	}
	if got := ParseFloatPtr("n/a"); got != nil {
		t.Errorf("ParseFloatPtr(n/a) = %v, want nil", got)
	}
}

func TestParseIntPtr(t *testing.T) {
	if got := ParseIntPtr("(1 234 reviews)"); got == nil || *got != 1234 {
		t.Errorf("ParseIntPtr = %v, want 1234", got)
	}
	if got := ParseIntPtr("no reviews yet"); got != nil {
		t.Errorf("ParseIntPtr on no digits = %v, want nil", got)
	}
}
