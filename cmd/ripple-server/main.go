// Command ripple-server is a minimal reference chat server for local
// development: it relays message, typing, and reaction frames between
// connected clients and maintains the shared presence picture. It stores
// nothing.
package main

import (
	"flag"
	"log"
	"net/http"
)

var addr = flag.String("addr", ":8080", "http service address")

func main() {
	flag.Parse()

	h := newHub()
	go h.run()

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(h, w, r)
	})

	log.Printf("ripple-server listening on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}
