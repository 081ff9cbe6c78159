// gm-sim is a bench stand-in for a Lakeshore Model 460 behind a Prologix
// controller. Point gaussd's link at it (tcp) or wire it to the far end of a
// virtual serial pair (serial).
package main

import (
	"bufio"
	"flag"
	"io"
	"log"
	"net"
	"time"

	"github.com/goburrow/serial"
)

func main() {
	var (
		tcpAddr    string
		serialPort string
		baud       int
		seed       int64
	)
	flag.StringVar(&tcpAddr, "tcp", ":1234", "TCP listen address (Prologix GPIB-ETHERNET port)")
	flag.StringVar(&serialPort, "serial", "", "serial port to serve instead of TCP (e.g. /dev/pts/5)")
	flag.IntVar(&baud, "baud", 115200, "baud rate for -serial")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "field drift seed")
	flag.Parse()

	if serialPort != "" {
		port, err := serial.Open(&serial.Config{
			Address:  serialPort,
			BaudRate: baud,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  30 * time.Second,
		})
		if err != nil {
			log.Fatalf("serial open %s: %v", serialPort, err)
		}
		defer port.Close()
		log.Printf("gm-sim serving Model 460 on %s", serialPort)
		serveSession(port, NewInstrument(seed))
		return
	}

	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", tcpAddr, err)
	}
	log.Printf("gm-sim serving Model 460 on %s", tcpAddr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Fatalf("accept: %v", err)
		}
		log.Printf("client connected: %s", conn.RemoteAddr())
		go func() {
			defer conn.Close()
			serveSession(conn, NewInstrument(seed))
			log.Printf("client gone: %s", conn.RemoteAddr())
		}()
	}
}

func serveSession(rw io.ReadWriter, ins *Instrument) {
	scanner := bufio.NewScanner(rw)
	for scanner.Scan() {
		reply, has := ins.HandleLine(scanner.Text())
		if !has {
			continue
		}
		if _, err := io.WriteString(rw, reply+"\r\n"); err != nil {
			log.Printf("write: %v", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("read: %v", err)
	}
}
