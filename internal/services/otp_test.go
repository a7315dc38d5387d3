package services

import (
	"strconv"
	"testing"
)

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := GenerateOTP()
		if !ValidOTPFormat(code) {
			t.Fatalf("otp %q is not a 4-digit code", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("otp %q is not numeric: %v", code, err)
		}
		if n < 1000 || n > 9999 {
			t.Fatalf("otp %d out of range", n)
		}
	}
}

func TestValidOTPFormat(t *testing.T) {
	valid := []string{"0000", "1234", "9999"}
	for _, s := range valid {
		if !ValidOTPFormat(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	invalid := []string{"", "123", "12345", "12a4", " 1234", "12.4"}
	for _, s := range invalid {
		if ValidOTPFormat(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}
