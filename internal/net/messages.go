package net

import (
	"encoding/binary"
	"errors"
	"fmt"

	"geri/internal/common"
	"geri/internal/warehouse"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for specified field lengths")
	ErrInvalidCost        = errors.New("invalid cost")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	ProduceLot
	ConsumeUnit
	DumpHistory
)

type ReportStatus int

const (
	TransactOk ReportStatus = iota
	TransactFailed
)

type Message interface {
	GetType() MessageType
}

// Message format constants
const (
	BaseMessageHeaderLen    = 2
	ProduceMessageHeaderLen = 8 + 1 + 1 // quantity + product len + cost len
	ConsumeMessageHeaderLen = 1         // product len
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, errors.New("message too short to contain header")
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case ProduceLot:
		return parseProduce(msg)
	case ConsumeUnit:
		return parseConsume(msg)
	case DumpHistory:
		return BaseMessage{TypeOf: DumpHistory}, nil
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

type ProduceMessage struct {
	BaseMessage
	Quantity   uint64 // 8 bytes
	ProductLen uint8  // 1 byte
	CostLen    uint8  // 1 byte
	Product    string // n bytes
	Cost       string // n bytes, decimal string e.g. "10.00"
}

// Transaction converts the wire message into a produce transaction, parsing
// the cost string into an exact decimal.
func (m *ProduceMessage) Transaction() (common.Transaction, error) {
	cost, err := decimal.NewFromString(m.Cost)
	if err != nil {
		return common.Transaction{}, fmt.Errorf("%w: %q", ErrInvalidCost, m.Cost)
	}
	return common.NewProduce(m.Product, m.Quantity, cost), nil
}

func parseProduce(msg []byte) (*ProduceMessage, error) {
	if len(msg) < ProduceMessageHeaderLen {
		return nil, ErrMessageTooShort
	}

	m := &ProduceMessage{BaseMessage: BaseMessage{TypeOf: ProduceLot}}
	m.Quantity = binary.BigEndian.Uint64(msg[0:8])
	m.ProductLen = msg[8]
	m.CostLen = msg[9]

	expectedTotalLen := ProduceMessageHeaderLen + int(m.ProductLen) + int(m.CostLen)
	if len(msg) < expectedTotalLen {
		return nil, ErrMessageTooShort
	}
	costStart := ProduceMessageHeaderLen + int(m.ProductLen)
	m.Product = string(msg[ProduceMessageHeaderLen:costStart])
	m.Cost = string(msg[costStart : costStart+int(m.CostLen)])

	return m, nil
}

type ConsumeMessage struct {
	BaseMessage
	ProductLen uint8  // 1 byte
	Product    string // n bytes
}

func (m *ConsumeMessage) Transaction() (common.Transaction, error) {
	return common.NewConsume(m.Product), nil
}

func parseConsume(msg []byte) (*ConsumeMessage, error) {
	if len(msg) < ConsumeMessageHeaderLen {
		return nil, ErrMessageTooShort
	}

	m := &ConsumeMessage{BaseMessage: BaseMessage{TypeOf: ConsumeUnit}}
	m.ProductLen = msg[0]

	expectedTotalLen := ConsumeMessageHeaderLen + int(m.ProductLen)
	if len(msg) < expectedTotalLen {
		return nil, ErrMessageTooShort
	}
	m.Product = string(msg[ConsumeMessageHeaderLen:expectedTotalLen])

	return m, nil
}

// Report is the server's answer to a transaction, sent back on the same
// connection.
type Report struct {
	Status   ReportStatus // 1 byte
	Kind     common.Kind  // 1 byte
	PriceLen uint8        // 1 byte
	ErrLen   uint16       // 2 bytes
	UUID     string       // 36 bytes
	Price    string       // n bytes, decimal string
	Err      string       // n bytes
}

const ReportFixedHeaderLen = 1 + 1 + 1 + 2 + 36

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() []byte {
	totalSize := ReportFixedHeaderLen + len(r.Price) + len(r.Err)

	buf := make([]byte, totalSize)
	buf[0] = byte(r.Status)
	buf[1] = byte(r.Kind)
	buf[2] = r.PriceLen
	binary.BigEndian.PutUint16(buf[3:5], r.ErrLen)

	// copy() ensures we don't panic if the uuid string is shorter.
	copy(buf[5:41], r.UUID)

	offset := ReportFixedHeaderLen
	copy(buf[offset:], r.Price)
	offset += int(r.PriceLen)
	copy(buf[offset:], r.Err)

	return buf
}

// ParseReport is the client-side inverse of Serialize. header must be exactly
// ReportFixedHeaderLen bytes; body carries the price and error strings.
func ParseReport(header, body []byte) (Report, error) {
	if len(header) < ReportFixedHeaderLen {
		return Report{}, ErrMessageTooShort
	}

	r := Report{
		Status:   ReportStatus(header[0]),
		Kind:     common.Kind(header[1]),
		PriceLen: header[2],
		ErrLen:   binary.BigEndian.Uint16(header[3:5]),
		UUID:     string(header[5:41]),
	}
	if len(body) < int(r.PriceLen)+int(r.ErrLen) {
		return Report{}, ErrMessageTooShort
	}
	r.Price = string(body[:int(r.PriceLen)])
	r.Err = string(body[int(r.PriceLen) : int(r.PriceLen)+int(r.ErrLen)])

	return r, nil
}

// generateTransactReport builds the wire report for an applied transaction.
func generateTransactReport(receipt warehouse.Receipt) []byte {
	price := receipt.PricePerUnit.String()
	report := Report{
		Status:   TransactOk,
		Kind:     receipt.Transaction.Kind,
		PriceLen: uint8(len(price)),
		UUID:     receipt.Transaction.UUID,
		Price:    price,
	}
	return report.Serialize()
}

// generateErrorReport builds the wire report for a rejected transaction.
func generateErrorReport(t common.Transaction, err error) []byte {
	errStr := err.Error()
	report := Report{
		Status: TransactFailed,
		Kind:   t.Kind,
		ErrLen: uint16(len(errStr)),
		UUID:   t.UUID,
		Err:    errStr,
	}
	return report.Serialize()
}
