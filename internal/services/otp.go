package services

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strconv"
)

var otpPattern = regexp.MustCompile(`^[0-9]{4}$`)

// GenerateOTP returns a 4-digit numeric code in [1000, 9999]. Codes are
// generated independently per ride; collisions across rides are fine.
func GenerateOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		// crypto/rand only fails if the OS entropy source is broken;
		// there is no sensible recovery at this layer.
		panic(err)
	}
	return strconv.FormatInt(1000+n.Int64(), 10)
}

// ValidOTPFormat reports whether s looks like a 4-digit code.
func ValidOTPFormat(s string) bool {
	return otpPattern.MatchString(s)
}
