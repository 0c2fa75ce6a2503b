// Command wol-agent is the companion process WOLDomainOps calls into to
// power a domain back on: it runs on (or beside) the target host and turns
// an HTTP /wake request into a Wake-on-LAN magic packet for that host's NIC.
package main

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"net/http"
)

// wakeHandler serves the power-on half of a domain's WOL pair: it is the
// remote end of genpd.DomainOps.PowerOn for any domain configured with
// powerOnMode "wol".
func wakeHandler(w http.ResponseWriter, r *http.Request) {
	mac := r.URL.Query().Get("mac")
	bcast := r.URL.Query().Get("broadcast")

	if mac == "" || bcast == "" {
		http.Error(w, "Missing mac or broadcast parameter", http.StatusBadRequest)
		return
	}

	log.Printf("domain power-on: waking device %s via broadcast %s", mac, bcast)

	err := sendMagicPacket(mac, bcast)
	if err != nil {
		log.Printf("domain power-on: failed to send magic packet to %s: %v", mac, err)
		http.Error(w, "Failed to send packet", http.StatusInternalServerError)
		return
	}

	log.Printf("domain power-on: magic packet sent to %s via %s", mac, bcast)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "WOL packet sent")
}

func sendMagicPacket(macAddr string, broadcastAddr string) error {
	mac, err := net.ParseMAC(macAddr)
	if err != nil {
		return fmt.Errorf("invalid MAC address: %w", err)
	}

	packet := append(bytes.Repeat([]byte{0xFF}, 6), bytes.Repeat(mac, 16)...)

	addr := &net.UDPAddr{
		IP:   net.ParseIP(broadcastAddr),
		Port: 9,
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("UDP dial error: %w", err)
	}
	defer conn.Close()

	_, err = conn.Write(packet)
	return err
}

func main() {
	http.HandleFunc("/wake", wakeHandler)
	log.Println("wol-agent: listening on :9102 for domain power-on requests")
	log.Fatal(http.ListenAndServe(":9102", nil))
}
