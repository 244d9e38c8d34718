// Package updash decodes connection status feeds.
//
// Quick start:
//
//	updates, err := updash.Watch(ctx, "ws://127.0.0.1:9000/status")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for u := range updates {
//	    fmt.Println(u.Line)
//	}
//
// A Decoder can also be used on its own to decode frames obtained some
// other way. Decoders are safe for concurrent use.
package updash
