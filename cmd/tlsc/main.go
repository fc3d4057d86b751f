// Command tlsc is a minimal TLS client for exercising package tls end to
// end: it connects, completes a handshake, then copies stdin to the
// connection and the connection to stdout, mirroring the teacher's
// flag-parsing idiom (cmd/ephemelier/main.go) over the option set
// original_source/bin/s2nc.c exposes.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/hallbrook/gotls/tls"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: tlsc [options] host [port]\n")
	fmt.Fprintf(os.Stderr, " host: hostname or IP address to connect to\n")
	fmt.Fprintf(os.Stderr, " port: port to connect to (default 443)\n\n")
	flag.PrintDefaults()
}

func main() {
	alpn := flag.String("alpn", "", "comma separated list of application protocols to offer")
	name := flag.String("name", "", "SNI server name; defaults to host")
	status := flag.Bool("status", false, "request OCSP status of the peer certificate (not implemented, accepted for compatibility)")
	insecure := flag.Bool("insecure", false, "skip certificate verification")
	flag.Usage = usage
	flag.Parse()

	log.SetFlags(0)

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	host := flag.Arg(0)
	port := "443"
	if flag.NArg() > 1 {
		port = flag.Arg(1)
	}
	serverName := *name
	if serverName == "" {
		serverName = host
	}
	if *status {
		log.Printf("warning: --status requested but status_request is not implemented by this client")
	}

	opts := []tls.Option{tls.WithServerName(serverName)}
	if *alpn != "" {
		opts = append(opts, tls.WithALPN(strings.Split(*alpn, ",")...))
	}
	if *insecure {
		opts = append(opts, tls.WithInsecureSkipVerify())
	}
	cfg := tls.NewConfig(opts...)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		log.Fatalf("dial %s:%s: %v", host, port, err)
	}
	defer conn.Close()

	tconn := tls.NewConnection(conn, tls.RoleClient, cfg)
	if err := tconn.Handshake(); err != nil {
		log.Fatalf("handshake: %v", err)
	}

	state := tconn.State()
	log.Printf("connected: version=%v cipher_suite=%v alpn=%q", state.Version, state.CipherSuite, state.NegotiatedProtocol)

	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(os.Stdout, tconn)
		errc <- err
	}()
	go func() {
		_, err := io.Copy(tconn, os.Stdin)
		errc <- err
	}()
	if err := <-errc; err != nil && err != io.EOF {
		log.Fatalf("connection: %v", err)
	}
}
