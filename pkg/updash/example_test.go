package updash_test

import (
	"fmt"
	"log"
	"time"

	"github.com/crimson-sun/updash/pkg/updash"
)

func ExampleDecoder_Decode() {
	d := updash.NewDecoder(updash.WithLocation(time.UTC))

	snap, err := d.Decode(`[["100","200"],["true","false"]]`)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(snap.Snapshot, snap.Timestamps, snap.Up)

	inc, err := d.Decode("server-down 300")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(inc.Status, inc.Timestamp)
	// Output:
	// true [100 200] [true false]
	// down 300
}

func ExampleClassify() {
	for _, label := range []string{"link-up", "At the connection went down.", "heartbeat"} {
		status, _ := updash.Classify(label)
		fmt.Printf("%q\n", status)
	}
	// Output:
	// "up"
	// "down"
	// ""
}
