package timestamp_test

import (
	"fmt"
	"time"

	"github.com/c360/simkernel/pkg/timestamp"
)

func ExampleParse() {
	fmt.Println(timestamp.Parse("2026-03-01T09:00:00Z"))
	fmt.Println(timestamp.Parse(int64(1772355600)))    // seconds
	fmt.Println(timestamp.Parse(int64(1772355600123))) // already milliseconds
	fmt.Println(timestamp.Parse("not a time"))

	// Output:
	// 1772355600000
	// 1772355600000
	// 1772355600123
	// 0
}

func ExampleFormat() {
	fmt.Printf("%q\n", timestamp.Format(1772355600000))
	fmt.Printf("%q\n", timestamp.Format(0))

	// Output:
	// "2026-03-01T09:00:00Z"
	// ""
}

func ExampleBetween() {
	start := int64(1772355600000)
	end := timestamp.Add(start, 90*time.Minute)

	fmt.Println(timestamp.Between(start, end))
	fmt.Println(timestamp.Between(0, end))

	// Output:
	// 1h30m0s
	// 0s
}
