package utils

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Formats an uint value into a fixed width binary string of n bits
func FormatUintBinary(value uint64, bits int) string {
	leadingZerosFormat := "%0" + fmt.Sprint(bits) + "s"
	return fmt.Sprintf(leadingZerosFormat, strconv.FormatUint(value, 2))
}

// Formats an uint value into an fixed width hex string of n characters
func FormatUintHex(value uint64, bits int) string {
	leadingZerosFormat := "0x%0" + fmt.Sprint(bits) + "s"
	return fmt.Sprintf(leadingZerosFormat, strconv.FormatUint(value, 16))
}

// Returns an string containing all formatted sequence items separated by a given separator
func FormatSlice[T any](input []T, separator string) string {
	var builder strings.Builder

	for i, value := range input {
		builder.WriteString(fmt.Sprint(value))

		if i < len(input)-1 {
			builder.WriteString(separator)
		}
	}

	return builder.String()
}

var humanSortRun = regexp.MustCompile(`\d+|\D+`)

// humanSortKey splits a string into alternating digit/non-digit runs so
// numeric runs can be compared as integers rather than lexicographically.
func humanSortKey(s string) []string {
	return humanSortRun.FindAllString(s, -1)
}

// HumanSort sorts input in place using "natural" order: runs of digits
// compare by numeric value ("file2" before "file10") instead of
// lexicographically.
func HumanSort(input []string) {
	sort.SliceStable(input, func(i, j int) bool {
		a, b := humanSortKey(input[i]), humanSortKey(input[j])
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] == b[k] {
				continue
			}
			an, aErr := strconv.ParseUint(a[k], 10, 64)
			bn, bErr := strconv.ParseUint(b[k], 10, 64)
			if aErr == nil && bErr == nil {
				return an < bn
			}
			return a[k] < b[k]
		}
		return len(a) < len(b)
	})
}
