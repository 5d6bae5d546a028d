package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"geri/internal/common"
	geriNet "geri/internal/net"

	"github.com/shopspring/decimal"
)

func main() {
	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:9002", "Address of the warehouse server")
	action := flag.String("action", "produce", "Action to perform: ['produce', 'consume', 'history']")

	// Transaction Parameters
	product := flag.String("product", "", "Product name (compulsory for produce/consume)")
	qty := flag.Uint64("qty", 1, "Units acquired (produce only)")
	cost := flag.String("cost", "", "Total acquisition cost, e.g. 10.00 (produce only)")

	flag.Parse()

	// Connect to Server
	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	// Execute Action
	switch strings.ToLower(*action) {
	case "produce":
		requireProduct(*product)
		if _, err := decimal.NewFromString(*cost); err != nil {
			log.Fatalf("Invalid -cost %q: %v", *cost, err)
		}
		if err := sendProduce(conn, *product, *qty, *cost); err != nil {
			log.Fatalf("Failed to send produce: %v", err)
		}
		fmt.Printf("-> Sent Produce: %s x%d @ %s total\n", *product, *qty, *cost)
		readReport(conn)

	case "consume":
		requireProduct(*product)
		if err := sendConsume(conn, *product); err != nil {
			log.Fatalf("Failed to send consume: %v", err)
		}
		fmt.Printf("-> Sent Consume: %s x1\n", *product)
		readReport(conn)

	case "history":
		if err := sendHistory(conn); err != nil {
			log.Fatalf("Failed to send history request: %v", err)
		}
		fmt.Println("-> Sent History Request")
		dumpHistory(conn)

	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}

func requireProduct(product string) {
	if product == "" {
		fmt.Println("Error: -product is compulsory.")
		flag.Usage()
		os.Exit(1)
	}
}

// sendProduce constructs and sends the ProduceLot message
func sendProduce(conn net.Conn, product string, qty uint64, cost string) error {
	totalLen := geriNet.BaseMessageHeaderLen + geriNet.ProduceMessageHeaderLen +
		len(product) + len(cost)
	buf := make([]byte, totalLen)

	// 1. Header (TypeOf = ProduceLot)
	binary.BigEndian.PutUint16(buf[0:2], uint16(geriNet.ProduceLot))

	// 2. Body
	binary.BigEndian.PutUint64(buf[2:10], qty)
	buf[10] = uint8(len(product))
	buf[11] = uint8(len(cost))
	copy(buf[12:], product)
	copy(buf[12+len(product):], cost)

	_, err := conn.Write(buf)
	return err
}

// sendConsume constructs and sends the ConsumeUnit message
func sendConsume(conn net.Conn, product string) error {
	totalLen := geriNet.BaseMessageHeaderLen + geriNet.ConsumeMessageHeaderLen + len(product)
	buf := make([]byte, totalLen)

	binary.BigEndian.PutUint16(buf[0:2], uint16(geriNet.ConsumeUnit))
	buf[2] = uint8(len(product))
	copy(buf[3:], product)

	_, err := conn.Write(buf)
	return err
}

func sendHistory(conn net.Conn) error {
	buf := make([]byte, geriNet.BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(geriNet.DumpHistory))
	_, err := conn.Write(buf)
	return err
}

// readReport reads and prints a single Report from the server
func readReport(conn net.Conn) {
	// 1. Read Fixed Header
	headerBuf := make([]byte, geriNet.ReportFixedHeaderLen)
	if _, err := io.ReadFull(conn, headerBuf); err != nil {
		if err != io.EOF {
			log.Printf("Connection lost: %v", err)
		}
		os.Exit(0)
	}

	// 2. Read Variable Length Strings (Price and Error)
	priceLen := headerBuf[2]
	errLen := binary.BigEndian.Uint16(headerBuf[3:5])
	varBuf := make([]byte, int(priceLen)+int(errLen))
	if len(varBuf) > 0 {
		if _, err := io.ReadFull(conn, varBuf); err != nil {
			log.Printf("Error reading report body: %v", err)
			return
		}
	}

	report, err := geriNet.ParseReport(headerBuf, varBuf)
	if err != nil {
		log.Printf("Error parsing report: %v", err)
		return
	}

	// 3. Print Report
	if report.Status == geriNet.TransactFailed {
		fmt.Printf("\n[REJECTED] %s\n", report.Err)
		return
	}

	uuid := strings.TrimRight(report.UUID, "\x00")
	switch report.Kind {
	case common.Produce:
		fmt.Printf("\n[PRODUCED] Price/Unit: %s | UUID: %s\n", report.Price, uuid)
	case common.Consume:
		fmt.Printf("\n[CONSUMED] Cost Basis: %s | UUID: %s\n", report.Price, uuid)
	}
}

// dumpHistory streams the plain-text history. The server holds the session
// open, so the stream only ends when the user interrupts or the server goes
// away.
func dumpHistory(conn net.Conn) {
	fmt.Println("(Press Ctrl+C to exit)")
	if _, err := io.Copy(os.Stdout, conn); err != nil {
		log.Printf("Connection lost: %v", err)
	}
}
